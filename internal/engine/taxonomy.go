package engine

import (
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/feature"
)

// ClassifyAttack assigns the attack-type label for an attack verdict.
// Checks are ordered; the first match wins.
//
// A second taxonomy with different DoS/DDoS thresholds existed in the old
// persistence layer ("High Volume Attack", "Error-Based Attack", "Port
// Scanning", "Flood Attack"). This one, the decision-path variant, is the
// canonical taxonomy; reconciling the two is tracked as a product decision,
// not something to merge silently here.
func ClassifyAttack(rec feature.Record) string {
	count := rec.Get("count")
	srcBytes := rec.Get("src_bytes")
	dstBytes := rec.Get("dst_bytes")
	serror := rec.Get("serror_rate")

	switch {
	case count > 500 && serror == 1.0:
		return "Extreme DoS Attack"
	case srcBytes > 50000 && dstBytes == 0:
		return "DoS Attack"
	case srcBytes > 100000:
		return "DDoS Attack"
	default:
		return "Suspicious Activity"
	}
}

// Severity tiers an attack by its attack probability, in percent.
func Severity(attackPct float64) string {
	switch {
	case attackPct > 80:
		return RiskCritical
	case attackPct > 60:
		return RiskHigh
	case attackPct > 40:
		return RiskMedium
	default:
		return RiskLow
	}
}
