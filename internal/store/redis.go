package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/engine"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/feature"
)

const (
	keyVerdictPrefix   = "verdict:"
	keyIncidentPrefix  = "incident:"
	keyRecentVerdicts  = "verdicts:recent"
	keyRecentIncidents = "incidents:recent"
	keyStatsTotal      = "stats:total"
	keyStatsAttacks    = "stats:attacks"
	keyStatsNormal     = "stats:normal"
	keyStatsDayPrefix  = "stats:day:"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g. "redis://localhost:6379").
	URL string

	// RecentLimit caps the recent verdict/incident lists. Zero means the
	// default of 1000.
	RecentLimit int

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// RedisStore implements Store on go-redis/v9.
type RedisStore struct {
	client      *redis.Client
	recentLimit int64
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 1000
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{
		client:      client,
		recentLimit: int64(opts.RecentLimit),
	}, nil
}

// SaveVerdict writes the verdict hash, prepends it to the recent list, and
// bumps the global and per-day counters.
func (s *RedisStore) SaveVerdict(ctx context.Context, v *engine.Verdict, rec feature.Record, source string) (string, error) {
	id := uuid.NewString()

	rawFeatures, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode features: %w", err)
	}

	fields := map[string]any{
		"timestamp":          v.Timestamp.Format(time.RFC3339Nano),
		"prediction":         v.Prediction,
		"prediction_label":   v.PredictionLabel,
		"risk_level":         v.RiskLevel,
		"confidence":         v.Confidence,
		"attack_probability": v.Probabilities.Attack,
		"normal_probability": v.Probabilities.Normal,
		"detection_method":   v.DetectionMethod,
		"is_attack":          v.IsAttack(),
		"source":             source,
		"raw_features":       string(rawFeatures),

		// Key feature subset kept alongside the verdict for analysis.
		"src_bytes":       rec.Get("src_bytes"),
		"dst_bytes":       rec.Get("dst_bytes"),
		"count":           rec.Get("count"),
		"srv_count":       rec.Get("srv_count"),
		"serror_rate":     rec.Get("serror_rate"),
		"srv_serror_rate": rec.Get("srv_serror_rate"),
	}

	day := keyStatsDayPrefix + v.Timestamp.Format("2006-01-02")
	outcome := keyStatsNormal
	dayField := "normal"
	if v.IsAttack() {
		outcome = keyStatsAttacks
		dayField = "attacks"
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, keyVerdictPrefix+id, fields)
		pipe.LPush(ctx, keyRecentVerdicts, id)
		pipe.LTrim(ctx, keyRecentVerdicts, 0, s.recentLimit-1)
		pipe.Incr(ctx, keyStatsTotal)
		pipe.Incr(ctx, outcome)
		pipe.HIncrBy(ctx, day, "total", 1)
		pipe.HIncrBy(ctx, day, dayField, 1)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("save verdict: %w", err)
	}
	return id, nil
}

// SaveIncident writes the incident hash linked to its verdict record.
func (s *RedisStore) SaveIncident(ctx context.Context, verdictID string, v *engine.Verdict, source string) (string, error) {
	if v.Incident == nil {
		return "", fmt.Errorf("verdict %s has no incident", verdictID)
	}
	id := uuid.NewString()

	fields := map[string]any{
		"verdict_id":  verdictID,
		"timestamp":   v.Timestamp.Format(time.RFC3339Nano),
		"attack_type": v.Incident.AttackType,
		"severity":    v.Incident.Severity,
		"confidence":  v.Confidence,
		"source":      source,
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, keyIncidentPrefix+id, fields)
		pipe.LPush(ctx, keyRecentIncidents, id)
		pipe.LTrim(ctx, keyRecentIncidents, 0, s.recentLimit-1)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("save incident: %w", err)
	}
	return id, nil
}

// Stats reads the global counters.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	vals, err := s.client.MGet(ctx, keyStatsTotal, keyStatsAttacks, keyStatsNormal).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("read stats: %w", err)
	}
	st := Stats{
		Total:   parseCounter(vals[0]),
		Attacks: parseCounter(vals[1]),
		Normal:  parseCounter(vals[2]),
	}
	if st.Total > 0 {
		st.AttackRate = math.Round(float64(st.Attacks)/float64(st.Total)*100*100) / 100
	}
	return st, nil
}

// RecentIncidents reads back up to limit incidents, newest first.
func (s *RedisStore) RecentIncidents(ctx context.Context, limit int) ([]IncidentRow, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.client.LRange(ctx, keyRecentIncidents, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}

	rows := make([]IncidentRow, 0, len(ids))
	for _, id := range ids {
		fields, err := s.client.HGetAll(ctx, keyIncidentPrefix+id).Result()
		if err != nil {
			return nil, fmt.Errorf("read incident %s: %w", id, err)
		}
		if len(fields) == 0 {
			// trimmed or expired hash; skip the dangling list entry
			continue
		}
		ts, _ := time.Parse(time.RFC3339Nano, fields["timestamp"])
		conf, _ := strconv.ParseFloat(fields["confidence"], 64)
		rows = append(rows, IncidentRow{
			ID:         id,
			VerdictID:  fields["verdict_id"],
			Timestamp:  ts,
			AttackType: fields["attack_type"],
			Severity:   fields["severity"],
			Confidence: conf,
			Source:     fields["source"],
		})
	}
	return rows, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func parseCounter(v any) int64 {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
