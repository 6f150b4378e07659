package hostfs

// Well-known host file locations.
const (
	EtcPasswdRel    = "etc/passwd"
	EtcShadowRel    = "etc/shadow"
	EtcGroupRel     = "etc/group"
	EtcOSReleaseRel = "etc/os-release"
)
