package entities

import "strings"

// Module identifies one of the test modules a learner can take.
type Module string

const (
	ModuleListening Module = "LISTENING"
	ModuleReading   Module = "READING"
	ModuleWriting   Module = "WRITING"
)

// Modules lists every supported module in a stable order.
var Modules = []Module{ModuleListening, ModuleReading, ModuleWriting}

// ParseModule converts a case-insensitive module name ("listening", "READING") to a Module.
func ParseModule(s string) (Module, bool) {
	m := Module(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case ModuleListening, ModuleReading, ModuleWriting:
		return m, true
	default:
		return "", false
	}
}

// Slug returns the lowercase form used in URLs and config keys.
func (m Module) Slug() string {
	return strings.ToLower(string(m))
}

// Tier is a subscription level that decides quotas and cooldowns.
type Tier string

const (
	TierFree       Tier = "FREE"       // hard cap of completed attempts per module
	TierPremium    Tier = "PREMIUM"    // no cap, cooldown between attempts
	TierEnterprise Tier = "ENTERPRISE" // no cap, cooldown unless disabled in config
	TierUnlimited  Tier = "UNLIMITED"  // staff and test accounts
)
