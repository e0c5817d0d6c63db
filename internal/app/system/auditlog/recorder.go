// internal/app/system/auditlog/recorder.go
package auditlog

import (
	"context"
	"net/http"
	"reflect"
	"unicode/utf8"

	"github.com/dalemusser/tourdesk/internal/app/store/audit"
	"github.com/dalemusser/tourdesk/internal/app/system/network"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for audit records.
const (
	ModeAll = "all" // MongoDB + zap
	ModeDB  = "db"  // MongoDB only
	ModeLog = "log" // zap only
	ModeOff = "off" // disabled
)

// MaxValueLen is the longest snapshot string stored verbatim.
const MaxValueLen = 500

// Ellipsis is appended to truncated snapshot strings.
const Ellipsis = "..."

// Entry is what a handler knows about one audited action.
type Entry struct {
	ActorID    primitive.ObjectID
	Action     string
	EntityType string
	EntityID   primitive.ObjectID
	OldValues  map[string]any
	NewValues  map[string]any
}

// Recorder writes audit records to the configured destinations.
type Recorder struct {
	store  *audit.Store
	zapLog *zap.Logger
	mode   string
}

// New creates a Recorder. An empty or unknown mode is treated as "all".
func New(store *audit.Store, zapLog *zap.Logger, mode string) *Recorder {
	switch mode {
	case ModeAll, ModeDB, ModeLog, ModeOff:
	default:
		mode = ModeAll
	}
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Recorder{store: store, zapLog: zapLog, mode: mode}
}

// Stores reports whether records reach the audit collection.
func (rc *Recorder) Stores() bool {
	return rc != nil && (rc.mode == ModeAll || rc.mode == ModeDB)
}

// Record appends one audit record for e, taking the client IP and user agent
// from r (which may be nil for background work). ctx may be a transaction
// session context so the record commits with the entity write.
//
// A storage failure is returned to the caller; nothing is retried.
func (rc *Recorder) Record(ctx context.Context, r *http.Request, e Entry) error {
	if rc == nil || rc.mode == ModeOff {
		return nil
	}

	rec := audit.Record{
		Action:     e.Action,
		EntityType: e.EntityType,
		OldValues:  Truncate(e.OldValues),
		NewValues:  Truncate(e.NewValues),
	}
	if !e.ActorID.IsZero() {
		id := e.ActorID
		rec.ActorID = &id
	}
	if !e.EntityID.IsZero() {
		id := e.EntityID
		rec.EntityID = &id
	}
	if r != nil {
		rec.IPAddress = network.GetClientIP(r)
		rec.UserAgent = r.UserAgent()
	}

	if rc.mode == ModeAll || rc.mode == ModeDB {
		stored, err := rc.store.Insert(ctx, rec)
		if err != nil {
			rc.zapLog.Error("failed to store audit record",
				zap.Error(err),
				zap.String("action", e.Action),
				zap.String("entity_type", e.EntityType))
			return err
		}
		rec = stored
	}
	if rc.mode == ModeAll || rc.mode == ModeLog {
		rc.logToZap(rec)
	}
	return nil
}

// RecordWithUserAgent is Record for callers without a request, such as
// background jobs.
func (rc *Recorder) RecordWithUserAgent(ctx context.Context, userAgent string, e Entry) error {
	r, _ := http.NewRequestWithContext(ctx, http.MethodPost, "/", nil)
	r.RemoteAddr = ""
	r.Header.Set("User-Agent", userAgent)
	return rc.Record(ctx, r, e)
}

// logToZap logs the record with consistent structure.
func (rc *Recorder) logToZap(rec audit.Record) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("action", rec.Action),
		zap.String("entity_type", rec.EntityType),
		zap.String("ip", rec.IPAddress),
	}
	if rec.ActorID != nil {
		fields = append(fields, zap.String("actor_id", rec.ActorID.Hex()))
	}
	if rec.EntityID != nil {
		fields = append(fields, zap.String("entity_id", rec.EntityID.Hex()))
	}
	if len(rec.OldValues) > 0 {
		fields = append(fields, zap.Any("old_values", rec.OldValues))
	}
	if len(rec.NewValues) > 0 {
		fields = append(fields, zap.Any("new_values", rec.NewValues))
	}
	rc.zapLog.Info("audit record", fields...)
}

// Truncate returns a copy of values with every string (including strings
// inside string slices) longer than MaxValueLen characters cut to
// MaxValueLen characters followed by Ellipsis.
func Truncate(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		switch tv := v.(type) {
		case string:
			out[k] = TruncateString(tv)
		case *string:
			if tv != nil {
				out[k] = TruncateString(*tv)
			} else {
				out[k] = nil
			}
		case []string:
			cp := make([]string, len(tv))
			for i, s := range tv {
				cp[i] = TruncateString(s)
			}
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}

// TruncateString applies the snapshot length bound to one string.
func TruncateString(s string) string {
	if utf8.RuneCountInString(s) <= MaxValueLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxValueLen]) + Ellipsis
}

// Changes compares two field snapshots and returns only the fields whose
// values differ, as (old, new). Fields present only in after are reported
// with a nil old value.
func Changes(before, after map[string]any) (map[string]any, map[string]any) {
	oldVals := map[string]any{}
	newVals := map[string]any{}
	for k, nv := range after {
		ov, had := before[k]
		if had && reflect.DeepEqual(ov, nv) {
			continue
		}
		oldVals[k] = ov
		newVals[k] = nv
	}
	return oldVals, newVals
}
