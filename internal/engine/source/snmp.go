package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	defaults "github.com/xtxerr/streamscope/config"
	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/engine/types"
	"github.com/xtxerr/streamscope/internal/errors"
)

// SNMP polls numeric OIDs with SNMP v2c GETs. Each Fetch issues one GET
// for all configured OIDs and yields one sample per numeric variable,
// categorized by the OID's configured category.
type SNMP struct {
	cfg        config.SNMPConfig
	categories map[string]string // normalized OID -> category
	oids       []string
	now        func() time.Time
}

// NewSNMP creates an SNMP source.
func NewSNMP(cfg config.SNMPConfig, now func() time.Time) (*SNMP, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.OIDs) > gosnmp.MaxOids {
		return nil, errors.NewValidation("oids", fmt.Sprintf("at most %d OIDs per poll", gosnmp.MaxOids))
	}
	if now == nil {
		now = time.Now
	}

	s := &SNMP{
		cfg:        cfg,
		categories: make(map[string]string, len(cfg.OIDs)),
		now:        now,
	}
	for _, o := range cfg.OIDs {
		s.oids = append(s.oids, o.OID)
		s.categories[normalizeOID(o.OID)] = o.Category
	}
	return s, nil
}

// Name implements Source.
func (s *SNMP) Name() string { return "snmp:" + s.cfg.Host }

// Close implements Source. Each poll owns its connection.
func (s *SNMP) Close() error { return nil }

// Fetch implements Source. n is ignored: a poll yields at most one sample
// per OID.
func (s *SNMP) Fetch(ctx context.Context, _ int) ([]types.Sample, error) {
	client := s.createClient(ctx)

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.cfg.Host, errors.Join(err, errors.ErrConnectionFailed))
	}
	defer client.Conn.Close()

	// Check context before GET
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	pdu, err := client.Get(s.oids)
	if err != nil {
		if isTimeoutError(err) {
			return nil, fmt.Errorf("get %s: %w", s.cfg.Host, errors.Join(err, errors.ErrTimeout))
		}
		return nil, fmt.Errorf("get %s: %w", s.cfg.Host, errors.Join(err, errors.ErrSourceFailed))
	}

	ts := s.now().UnixMilli()
	out := make([]types.Sample, 0, len(pdu.Variables))
	for _, v := range pdu.Variables {
		sample, ok := s.toSample(v, ts)
		if !ok {
			log.Debug("skipping non-numeric variable", "oid", v.Name, "type", v.Type)
			continue
		}
		out = append(out, sample)
	}
	return out, nil
}

func (s *SNMP) createClient(ctx context.Context) *gosnmp.GoSNMP {
	port := s.cfg.Port
	if port == 0 {
		port = defaults.DefaultSNMPPort
	}

	timeout := s.cfg.TimeoutMs
	if timeout <= 0 {
		timeout = defaults.DefaultSNMPTimeoutMs
	}

	return &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    s.cfg.Host,
		Port:      port,
		Timeout:   time.Duration(timeout) * time.Millisecond,
		Retries:   s.cfg.Retries,
		Version:   gosnmp.Version2c,
		Community: s.cfg.Community,
		MaxOids:   gosnmp.MaxOids,
	}
}

// toSample converts one variable. Non-numeric types are rejected.
func (s *SNMP) toSample(v gosnmp.SnmpPDU, ts int64) (types.Sample, bool) {
	value, ok := numericValue(v)
	if !ok {
		return types.Sample{}, false
	}

	category, found := s.categories[normalizeOID(v.Name)]
	if !found {
		category = v.Name
	}

	return types.Sample{
		TimestampMs: ts,
		Value:       value,
		Category:    category,
		Metadata:    types.Metadata{"oid": v.Name, "host": s.cfg.Host},
	}, true
}

// numericValue extracts a float from numeric SNMP types.
func numericValue(v gosnmp.SnmpPDU) (float64, bool) {
	switch v.Type {
	case gosnmp.Counter32, gosnmp.Counter64, gosnmp.Gauge32, gosnmp.Uinteger32:
		f, _ := gosnmp.ToBigInt(v.Value).Float64()
		return f, true

	case gosnmp.Integer:
		i, ok := v.Value.(int)
		return float64(i), ok

	case gosnmp.TimeTicks:
		t, ok := v.Value.(uint32)
		return float64(t), ok

	default:
		return 0, false
	}
}

func normalizeOID(oid string) string {
	return strings.TrimPrefix(oid, ".")
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	// gosnmp returns "request timeout" on timeout
	msg := err.Error()
	return strings.Contains(msg, "request timeout") ||
		strings.Contains(msg, "context deadline exceeded")
}
