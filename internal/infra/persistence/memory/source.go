package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"specstore/pkg/query"
)

// source evaluates directives against the session's view of one entity set.
// It is value-semantic: With copies the directive slice, so refining a source
// leaves the original usable.
type source struct {
	sess       *Session
	set        string
	tracked    bool
	newEntity  func() any
	directives []query.Directive
}

func (s source) With(d query.Directive) query.Source {
	nd := make([]query.Directive, 0, len(s.directives)+1)
	nd = append(nd, s.directives...)
	nd = append(nd, d)
	s.directives = nd
	return s
}

func (s source) effectiveTracked() bool {
	for _, d := range s.directives {
		if d.Kind == query.DirectiveNoTracking {
			return false
		}
	}
	return s.tracked
}

// materialize decodes one row. Tracked materialization resolves repeated
// loads of the same identity to the same pointer and records the load-time
// state for diff-based flushing at SaveChanges.
func (s source) materialize(id string, blob json.RawMessage, tracked bool) (any, error) {
	if tracked {
		if e := s.sess.trackedEntry(s.set, id); e != nil {
			return e.ptr, nil
		}
	}
	ptr := s.newEntity()
	if err := json.Unmarshal(blob, ptr); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", s.set, id, err)
	}
	if tracked {
		s.sess.attach(s.set, id, ptr, append(json.RawMessage(nil), blob...))
	}
	return ptr, nil
}

func (s source) Get(ctx context.Context, id any) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.sess.closed {
		return nil, false, ErrSessionClosed
	}
	rows := s.sess.view()[s.set]
	key := keyString(id)
	blob, ok := rows[key]
	if !ok {
		return nil, false, nil
	}
	v, err := s.materialize(key, blob, s.effectiveTracked())
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// matches decodes and filters the set without ordering or paging. Entity
// graphs are stored whole, so include directives are satisfied by decoding;
// the recorded paths carry meaning only for translating drivers.
func (s source) matches(ctx context.Context, tracked bool) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.sess.closed {
		return nil, ErrSessionClosed
	}
	rows := s.sess.view()[s.set]
	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]any, 0, len(rows))
next:
	for _, id := range ids {
		v, err := s.materialize(id, rows[id], tracked)
		if err != nil {
			return nil, err
		}
		for _, d := range s.directives {
			if d.Kind == query.DirectiveFilter && !d.Predicate(v) {
				continue next
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func (s source) List(ctx context.Context) ([]any, error) {
	out, err := s.matches(ctx, s.effectiveTracked())
	if err != nil {
		return nil, err
	}

	var sorts []query.Directive
	skip, take := -1, -1
	for _, d := range s.directives {
		switch d.Kind {
		case query.DirectiveSort:
			sorts = append(sorts, d)
		case query.DirectiveSkip:
			skip = d.N
		case query.DirectiveTake:
			take = d.N
		}
	}

	if len(sorts) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, d := range sorts {
				c := compareValues(d.Key.Value(out[i]), d.Key.Value(out[j]))
				if d.Descending {
					c = -c
				}
				if c != 0 {
					return c < 0
				}
			}
			return false
		})
	}
	if skip > 0 {
		if skip >= len(out) {
			out = nil
		} else {
			out = out[skip:]
		}
	}
	if take >= 0 && take < len(out) {
		out = out[:take]
	}
	return out, nil
}

// Count ignores sort, skip and take directives: aggregates report the full
// match count regardless of paging present on the source.
func (s source) Count(ctx context.Context) (int64, error) {
	out, err := s.matches(ctx, false)
	if err != nil {
		return 0, err
	}
	return int64(len(out)), nil
}

func (s source) Any(ctx context.Context) (bool, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// compareValues orders two sort-key values. Mismatched or unknown types fall
// back to their string forms so ordering stays total.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
