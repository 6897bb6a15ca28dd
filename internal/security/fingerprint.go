package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// FingerprintLength is the length of the hex fingerprint string
const FingerprintLength = 32

// componentDelimiter separates hardware components before hashing. The
// delimiter keeps distinct component tuples from concatenating to the same
// pre-image.
const componentDelimiter = "|"

// MachineFingerprint holds the derived machine identifier together with the
// readable components it was built from.
type MachineFingerprint struct {
	Fingerprint string    `json:"fingerprint"`
	Hostname    string    `json:"hostname"`
	MACAddress  string    `json:"mac_address"`
	CPUID       string    `json:"cpu_id"`
	OS          string    `json:"os"`
	Arch        string    `json:"arch"`
	GeneratedAt time.Time `json:"generated_at"`
}

// FingerprintManager derives and caches the machine fingerprint.
// The fingerprint is a pure function of the host: deterministic and stable
// across runs as long as the same subset of components is readable.
type FingerprintManager struct {
	cache         *MachineFingerprint
	cacheMutex    sync.RWMutex
	cacheExpiry   time.Time
	cacheDuration time.Duration
}

// NewFingerprintManager creates a new fingerprint manager with caching
func NewFingerprintManager() *FingerprintManager {
	return &FingerprintManager{
		cacheDuration: 1 * time.Hour,
	}
}

// Generate derives the machine fingerprint by combining hardware factors.
// Components that cannot be read are silently omitted rather than failing
// the call; the fingerprint degrades gracefully but stays stable for the
// subset that is available.
func (fm *FingerprintManager) Generate() (*MachineFingerprint, error) {
	fm.cacheMutex.RLock()
	if fm.cache != nil && time.Now().Before(fm.cacheExpiry) {
		cached := *fm.cache
		fm.cacheMutex.RUnlock()
		return &cached, nil
	}
	fm.cacheMutex.RUnlock()

	hostname := fm.hostname()
	macAddr := fm.macAddress()
	cpuID := fm.cpuID()

	// Empty components are dropped so a missing probe never contributes
	// an ambiguous empty segment.
	components := make([]string, 0, 5)
	for _, c := range []string{hostname, runtime.GOARCH, cpuID, macAddr} {
		if strings.TrimSpace(c) != "" {
			components = append(components, c)
		}
	}
	components = append(components, runtime.GOOS)

	combined := strings.Join(components, componentDelimiter)
	hash := sha256.Sum256([]byte(combined))
	fingerprint := hex.EncodeToString(hash[:])[:FingerprintLength]

	mf := &MachineFingerprint{
		Fingerprint: fingerprint,
		Hostname:    hostname,
		MACAddress:  macAddr,
		CPUID:       cpuID,
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		GeneratedAt: time.Now(),
	}

	fm.cacheMutex.Lock()
	fm.cache = mf
	fm.cacheExpiry = time.Now().Add(fm.cacheDuration)
	fm.cacheMutex.Unlock()

	slog.Debug("machine fingerprint generated",
		slog.String("fingerprint", fingerprint),
		slog.String("hostname", hostname),
		slog.String("os", runtime.GOOS),
		slog.String("arch", runtime.GOARCH),
	)

	return mf, nil
}

// ID returns just the fingerprint string
func (fm *FingerprintManager) ID() string {
	mf, err := fm.Generate()
	if err != nil {
		return ""
	}
	return mf.Fingerprint
}

// Verify recomputes the fingerprint and compares it to the stored value.
// Exact equality only; there is no fuzzy or partial matching.
func (fm *FingerprintManager) Verify(stored string) bool {
	current, err := fm.Generate()
	if err != nil {
		return false
	}
	return current.Fingerprint == stored
}

// Components returns the individual fingerprint inputs for diagnostics
func (fm *FingerprintManager) Components() map[string]string {
	return map[string]string{
		"hostname":    fm.hostname(),
		"mac_address": fm.macAddress(),
		"cpu_id":      fm.cpuID(),
		"os":          runtime.GOOS,
		"arch":        runtime.GOARCH,
	}
}

// ClearCache clears the cached fingerprint
func (fm *FingerprintManager) ClearCache() {
	fm.cacheMutex.Lock()
	defer fm.cacheMutex.Unlock()
	fm.cache = nil
	fm.cacheExpiry = time.Time{}
}

// hostname returns the normalized machine hostname, or "" when unavailable
func (fm *FingerprintManager) hostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(hostname))
}

// macAddress returns the MAC address of the first up, non-loopback
// interface, or "" when no usable interface exists
func (fm *FingerprintManager) macAddress() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if mac := iface.HardwareAddr.String(); mac != "" && mac != "00:00:00:00:00:00" {
			return mac
		}
	}

	// Fallback: any interface with a hardware address, so the fingerprint
	// stays stable on hosts where no interface is up at generation time.
	for _, iface := range interfaces {
		if mac := iface.HardwareAddr.String(); mac != "" && mac != "00:00:00:00:00:00" {
			return mac
		}
	}
	return ""
}

// cpuID returns a processor identifier, OS-specific where possible
func (fm *FingerprintManager) cpuID() string {
	switch runtime.GOOS {
	case "windows":
		if procID := os.Getenv("PROCESSOR_IDENTIFIER"); procID != "" {
			return hashComponent(procID)
		}
		return hashComponent("windows-" + runtime.GOARCH + "-" + os.Getenv("PROCESSOR_ARCHITECTURE"))
	case "linux":
		if data, err := os.ReadFile("/proc/cpuinfo"); err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				if strings.HasPrefix(line, "model name") || strings.HasPrefix(line, "cpu family") {
					return hashComponent(line)
				}
			}
		}
		return hashComponent("linux-" + runtime.GOARCH)
	default:
		return hashComponent(runtime.GOOS + "-" + runtime.GOARCH)
	}
}

// hashComponent normalizes a raw component value to a short stable token
func hashComponent(raw string) string {
	hash := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(hash[:8])
}
