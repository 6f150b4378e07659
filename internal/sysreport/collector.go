package sysreport

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

type cpuSnapshot struct {
	user   uint64
	nice   uint64
	system uint64
	idle   uint64
	iowait uint64
	irq    uint64
	soft   uint64
	steal  uint64
}

func (c cpuSnapshot) total() uint64 {
	return c.user + c.nice + c.system + c.idle + c.iowait + c.irq + c.soft + c.steal
}

type userAgg struct {
	cpuTicks uint64
	memBytes uint64
	procs    int
}

// Collector samples /proc. Rate values (CPU, disk IO, network) are deltas
// against the previous sample, so the first Collect of a process reports
// zero rates.
type Collector struct {
	procRoot   string
	passwdPath string

	mu            sync.Mutex
	prevCPU       *cpuSnapshot
	prevDiskRead  uint64
	prevDiskWrite uint64
	prevNetRx     uint64
	prevNetTx     uint64
	hasPrevDisk   bool
	hasPrevNet    bool
}

// NewCollector samples under procRoot (default /proc) and resolves process
// owners against passwdPath (default /etc/passwd).
func NewCollector(procRoot, passwdPath string) *Collector {
	if strings.TrimSpace(procRoot) == "" {
		procRoot = "/proc"
	}
	if strings.TrimSpace(passwdPath) == "" {
		passwdPath = "/etc/passwd"
	}
	return &Collector{procRoot: procRoot, passwdPath: passwdPath}
}

func (c *Collector) Collect(cfg Config) (Metrics, []UserResource, error) {
	cfg = cfg.WithDefaults()
	m := Metrics{Timestamp: time.Now().UTC()}

	if cfg.CollectCPU {
		cpu, err := c.readCPU()
		if err != nil {
			return m, nil, err
		}
		m.CPUUser = cpu.CPUUser
		m.CPUSystem = cpu.CPUSystem
		m.CPUIdle = cpu.CPUIdle
		m.CPUUsage = cpu.CPUUsage
	}

	if cfg.CollectMemory {
		total, used, avail, err := c.readMemInfo()
		if err != nil {
			return m, nil, err
		}
		m.MemTotal = total
		m.MemUsed = used
		m.MemAvailable = avail
	}

	if cfg.CollectDiskIO {
		r, w, err := c.readDiskStats()
		if err != nil {
			return m, nil, err
		}
		m.DiskReadBytes = r
		m.DiskWriteBytes = w
	}

	if cfg.CollectFilesystem {
		fs, err := c.readFilesystems()
		if err != nil {
			return m, nil, err
		}
		m.Filesystems = fs
	}

	if cfg.CollectNetwork {
		rx, tx, err := c.readNetwork()
		if err != nil {
			return m, nil, err
		}
		m.NetworkRxBytes = rx
		m.NetworkTxBytes = tx
	}

	var users []UserResource
	if cfg.CollectUserStats {
		u, err := c.readUserProcesses()
		if err != nil {
			return m, nil, err
		}
		users = u
	}

	return m, users, nil
}

// Report bundles host identity with a fresh sample.
func (c *Collector) Report(cfg Config) (Report, error) {
	m, users, err := c.Collect(cfg)
	if err != nil {
		return Report{}, err
	}
	return Report{Host: c.HostInfo(), Metrics: m, UserStats: users}, nil
}

func (c *Collector) readCPU() (Metrics, error) {
	f, err := os.Open(filepath.Join(c.procRoot, "stat"))
	if err != nil {
		return Metrics{}, err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	if !s.Scan() {
		if s.Err() != nil {
			return Metrics{}, s.Err()
		}
		return Metrics{}, fmt.Errorf("empty %s/stat", c.procRoot)
	}
	fields := strings.Fields(s.Text())
	if len(fields) < 8 || fields[0] != "cpu" {
		return Metrics{}, fmt.Errorf("invalid cpu line in %s/stat", c.procRoot)
	}
	parse := func(v string) uint64 {
		n, _ := strconv.ParseUint(v, 10, 64)
		return n
	}
	now := &cpuSnapshot{
		user:   parse(fields[1]),
		nice:   parse(fields[2]),
		system: parse(fields[3]),
		idle:   parse(fields[4]),
		iowait: parse(fields[5]),
		irq:    parse(fields[6]),
		soft:   parse(fields[7]),
	}
	if len(fields) > 8 {
		now.steal = parse(fields[8])
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.prevCPU == nil {
		c.prevCPU = now
		return Metrics{CPUIdle: 100}, nil
	}
	prev := c.prevCPU
	c.prevCPU = now

	dTotal := now.total() - prev.total()
	if dTotal == 0 {
		return Metrics{CPUIdle: 100}, nil
	}
	pct := func(d uint64) float64 { return float64(d) / float64(dTotal) * 100 }
	out := Metrics{
		CPUUser:   pct(now.user - prev.user),
		CPUSystem: pct(now.system - prev.system),
		CPUIdle:   pct(now.idle - prev.idle),
	}
	out.CPUUsage = 100 - out.CPUIdle
	return out, nil
}

func (c *Collector) readMemInfo() (total, used, avail uint64, err error) {
	f, err := os.Open(filepath.Join(c.procRoot, "meminfo"))
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()

	vals := map[string]uint64{}
	s := bufio.NewScanner(f)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) < 2 {
			continue
		}
		key := strings.TrimSuffix(fields[0], ":")
		n, perr := strconv.ParseUint(fields[1], 10, 64)
		if perr != nil {
			continue
		}
		vals[key] = n * 1024 // meminfo reports kB
	}
	if err := s.Err(); err != nil {
		return 0, 0, 0, err
	}
	total = vals["MemTotal"]
	avail = vals["MemAvailable"]
	if total >= avail {
		used = total - avail
	}
	return total, used, avail, nil
}

func (c *Collector) readDiskStats() (readBytes, writeBytes uint64, err error) {
	b, err := os.ReadFile(filepath.Join(c.procRoot, "diskstats"))
	if err != nil {
		return 0, 0, err
	}
	var totalRead, totalWrite uint64
	for _, ln := range strings.Split(string(b), "\n") {
		f := strings.Fields(ln)
		if len(f) < 10 {
			continue
		}
		name := f[2]
		if strings.HasPrefix(name, "loop") || strings.HasPrefix(name, "ram") {
			continue
		}
		readSectors, _ := strconv.ParseUint(f[5], 10, 64)
		writeSectors, _ := strconv.ParseUint(f[9], 10, 64)
		totalRead += readSectors * 512
		totalWrite += writeSectors * 512
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasPrevDisk {
		c.prevDiskRead = totalRead
		c.prevDiskWrite = totalWrite
		c.hasPrevDisk = true
		return 0, 0, nil
	}
	if totalRead >= c.prevDiskRead {
		readBytes = totalRead - c.prevDiskRead
	}
	if totalWrite >= c.prevDiskWrite {
		writeBytes = totalWrite - c.prevDiskWrite
	}
	c.prevDiskRead = totalRead
	c.prevDiskWrite = totalWrite
	return readBytes, writeBytes, nil
}

func (c *Collector) readFilesystems() ([]FilesystemUsage, error) {
	b, err := os.ReadFile(filepath.Join(c.procRoot, "mounts"))
	if err != nil {
		return nil, err
	}
	skipFs := map[string]bool{
		"proc": true, "sysfs": true, "devtmpfs": true, "devpts": true,
		"tmpfs": true, "cgroup": true, "cgroup2": true, "overlay": true,
		"squashfs": true, "mqueue": true,
	}
	seen := map[string]bool{}
	var out []FilesystemUsage
	for _, ln := range strings.Split(string(b), "\n") {
		f := strings.Fields(ln)
		if len(f) < 3 {
			continue
		}
		mnt, fst := f[1], f[2]
		if skipFs[fst] || seen[mnt] {
			continue
		}
		fi, err := os.Stat(mnt)
		if err != nil || !fi.IsDir() {
			continue
		}
		seen[mnt] = true
		var s syscall.Statfs_t
		if err := syscall.Statfs(mnt, &s); err != nil {
			continue
		}
		blockSize := uint64(s.Bsize)
		total := s.Blocks * blockSize
		avail := s.Bavail * blockSize
		used := uint64(0)
		if total > avail {
			used = total - avail
		}
		pct := 0.0
		if total > 0 {
			pct = float64(used) / float64(total) * 100
		}
		out = append(out, FilesystemUsage{MountPoint: mnt, Total: total, Used: used, UsePercent: pct})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MountPoint < out[j].MountPoint })
	return out, nil
}

func (c *Collector) readNetwork() (rx, tx uint64, err error) {
	b, err := os.ReadFile(filepath.Join(c.procRoot, "net", "dev"))
	if err != nil {
		return 0, 0, err
	}
	var totalRx, totalTx uint64
	for _, ln := range strings.Split(string(b), "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" || strings.HasPrefix(ln, "Inter-") || strings.HasPrefix(ln, "face") {
			continue
		}
		parts := strings.Split(ln, ":")
		if len(parts) != 2 {
			continue
		}
		if strings.TrimSpace(parts[0]) == "lo" {
			continue
		}
		f := strings.Fields(parts[1])
		if len(f) < 16 {
			continue
		}
		rxb, _ := strconv.ParseUint(f[0], 10, 64)
		txb, _ := strconv.ParseUint(f[8], 10, 64)
		totalRx += rxb
		totalTx += txb
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasPrevNet {
		c.prevNetRx = totalRx
		c.prevNetTx = totalTx
		c.hasPrevNet = true
		return 0, 0, nil
	}
	if totalRx >= c.prevNetRx {
		rx = totalRx - c.prevNetRx
	}
	if totalTx >= c.prevNetTx {
		tx = totalTx - c.prevNetTx
	}
	c.prevNetRx = totalRx
	c.prevNetTx = totalTx
	return rx, tx, nil
}

func (c *Collector) uidToLogin() map[string]string {
	m := map[string]string{}
	b, err := os.ReadFile(c.passwdPath)
	if err != nil {
		return m
	}
	for _, ln := range strings.Split(string(b), "\n") {
		if ln == "" || strings.HasPrefix(ln, "#") {
			continue
		}
		f := strings.Split(ln, ":")
		if len(f) < 3 {
			continue
		}
		m[f[2]] = f[0]
	}
	return m
}

func (c *Collector) readUserProcesses() ([]UserResource, error) {
	ents, err := os.ReadDir(c.procRoot)
	if err != nil {
		return nil, err
	}
	logins := c.uidToLogin()
	agg := map[string]*userAgg{}
	for _, ent := range ents {
		if !ent.IsDir() {
			continue
		}
		pid := ent.Name()
		if _, err := strconv.Atoi(pid); err != nil {
			continue
		}
		b, err := os.ReadFile(filepath.Join(c.procRoot, pid, "status"))
		if err != nil {
			continue
		}
		uid := ""
		vmrss := uint64(0)
		for _, ln := range strings.Split(string(b), "\n") {
			if strings.HasPrefix(ln, "Uid:") {
				if f := strings.Fields(ln); len(f) >= 2 {
					uid = f[1]
				}
			}
			if strings.HasPrefix(ln, "VmRSS:") {
				if f := strings.Fields(ln); len(f) >= 2 {
					v, _ := strconv.ParseUint(f[1], 10, 64)
					vmrss = v * 1024
				}
			}
		}
		if uid == "" {
			continue
		}
		if n, err := strconv.Atoi(uid); err == nil && n > 0 && n < 1000 {
			// System accounts are noise in a per-user report.
			continue
		}
		user := logins[uid]
		if user == "" {
			user = "uid:" + uid
		}
		pb, err := os.ReadFile(filepath.Join(c.procRoot, pid, "stat"))
		if err != nil {
			continue
		}
		fields := strings.Fields(string(pb))
		if len(fields) < 15 {
			continue
		}
		utime, _ := strconv.ParseUint(fields[13], 10, 64)
		stime, _ := strconv.ParseUint(fields[14], 10, 64)
		ua := agg[user]
		if ua == nil {
			ua = &userAgg{}
			agg[user] = ua
		}
		ua.cpuTicks += utime + stime
		ua.memBytes += vmrss
		ua.procs++
	}

	var totalTicks uint64
	for _, v := range agg {
		totalTicks += v.cpuTicks
	}

	out := make([]UserResource, 0, len(agg))
	for user, v := range agg {
		cpu := 0.0
		if totalTicks > 0 {
			cpu = float64(v.cpuTicks) / float64(totalTicks) * 100
		}
		out = append(out, UserResource{Username: user, CPU: cpu, MemoryBytes: v.memBytes, ProcessCount: v.procs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CPU == out[j].CPU {
			return out[i].MemoryBytes > out[j].MemoryBytes
		}
		return out[i].CPU > out[j].CPU
	})
	if len(out) > 20 {
		out = out[:20]
	}
	return out, nil
}
