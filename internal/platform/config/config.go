package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. Policy constants live here so
// operators can tune them without a rebuild; defaults match the shipped policy.
type Server struct {
	Addr          string
	JWTSigningKey string
	// AdminToken guards dealer provisioning and credit top-ups. Empty
	// disables those endpoints.
	AdminToken string

	// PostgresURL enables the postgres-backed stores when set.
	PostgresURL string
	// RedisURL enables the redis-backed lock, dedup, and quota stores when set.
	RedisURL string
	// KafkaBrokers enables the compliance ledger Kafka mirror when non-empty.
	KafkaBrokers []string
	// KafkaAuditTopic receives mirrored compliance events.
	KafkaAuditTopic string

	// VerificationAmountCents is the hold placed per verification attempt.
	VerificationAmountCents int64
	// VerificationTTL bounds how long a passed verification stays fresh.
	VerificationTTL time.Duration

	Policy Policy
}

// Policy groups the tunable verification policy constants.
type Policy struct {
	// AgeThresholdYears is the minimum buyer age.
	AgeThresholdYears int
	// AddressMatchThreshold is the score at or above which an address counts
	// as verified.
	AddressMatchThreshold float64
	// Address component weights. They should sum to 1.
	StreetWeight float64
	CityWeight   float64
	StateWeight  float64
	PostalWeight float64
	// ChargeOnFailure keeps a dealer's reserved credit consumed even when the
	// verification attempt errors out. Deliberate anti-abuse stance: probing
	// the service costs credits whether or not the lookup succeeds.
	ChargeOnFailure bool
}

// DefaultPolicy returns the shipped verification policy.
func DefaultPolicy() Policy {
	return Policy{
		AgeThresholdYears:     21,
		AddressMatchThreshold: 0.8,
		StreetWeight:          0.4,
		CityWeight:            0.2,
		StateWeight:           0.2,
		PostalWeight:          0.2,
		ChargeOnFailure:       true,
	}
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("AGEGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}
	topic := os.Getenv("KAFKA_AUDIT_TOPIC")
	if topic == "" {
		topic = "agegate.compliance"
	}

	policy := DefaultPolicy()
	if v, err := strconv.Atoi(os.Getenv("AGE_THRESHOLD_YEARS")); err == nil && v > 0 {
		policy.AgeThresholdYears = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("ADDRESS_MATCH_THRESHOLD"), 64); err == nil && v > 0 {
		policy.AddressMatchThreshold = v
	}
	if raw := os.Getenv("QUOTA_CHARGE_ON_FAILURE"); raw != "" {
		policy.ChargeOnFailure = raw == "true"
	}

	amount := int64(500)
	if v, err := strconv.ParseInt(os.Getenv("VERIFICATION_AMOUNT_CENTS"), 10, 64); err == nil && v > 0 {
		amount = v
	}

	return Server{
		Addr:                    addr,
		JWTSigningKey:           jwtSigningKey,
		AdminToken:              os.Getenv("AGEGATE_ADMIN_TOKEN"),
		PostgresURL:             os.Getenv("POSTGRES_URL"),
		RedisURL:                os.Getenv("REDIS_URL"),
		KafkaBrokers:            brokers,
		KafkaAuditTopic:         topic,
		VerificationAmountCents: amount,
		VerificationTTL:         365 * 24 * time.Hour,
		Policy:                  policy,
	}
}
