// Package sshkey generates SSH keypairs and formats them for OpenSSH
// consumption. It is pure key material handling; file placement, modes and
// ownership belong to the provisioner.
package sshkey

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// DefaultBits matches ssh-keygen -t rsa -b 4096.
const DefaultBits = 4096

// Pair holds a generated keypair: the private key in PKCS#1 PEM and the
// public key as a single authorized_keys-format line (no trailing newline).
type Pair struct {
	Private []byte
	Public  []byte
}

// Generator produces RSA keypairs. Bits <= 0 means DefaultBits; tests use
// smaller sizes to stay fast.
type Generator struct {
	Bits int
}

// Generate creates an unencrypted RSA keypair tagged with comment. RSA-4096
// can take a few seconds, so generation runs in a goroutine and the context
// deadline is honored; an abandoned generation finishes and is discarded.
func (g Generator) Generate(ctx context.Context, comment string) (Pair, error) {
	bits := g.Bits
	if bits <= 0 {
		bits = DefaultBits
	}

	type result struct {
		key *rsa.PrivateKey
		err error
	}
	ch := make(chan result, 1)
	go func() {
		key, err := rsa.GenerateKey(rand.Reader, bits)
		ch <- result{key: key, err: err}
	}()

	select {
	case <-ctx.Done():
		return Pair{}, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return Pair{}, fmt.Errorf("generate rsa-%d key: %w", bits, res.err)
		}
		return marshal(res.key, comment)
	}
}

func marshal(key *rsa.PrivateKey, comment string) (Pair, error) {
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pub, err := publicLine(&key.PublicKey, comment)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Private: privPEM, Public: pub}, nil
}

func publicLine(pub *rsa.PublicKey, comment string) ([]byte, error) {
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("convert public key: %w", err)
	}
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	if comment != "" {
		line = line + " " + comment
	}
	return []byte(line), nil
}

// PublicFromPrivate recovers the authorized_keys line from a PEM private
// key. Used when an account has id_rsa but lost its .pub file.
func PublicFromPrivate(privPEM []byte, comment string) ([]byte, error) {
	raw, err := ssh.ParseRawPrivateKey(privPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := raw.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", raw)
	}
	return publicLine(&key.PublicKey, comment)
}
