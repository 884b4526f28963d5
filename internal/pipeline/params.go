package pipeline

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/jointab/pkg/core"
	"github.com/leapstack-labs/jointab/pkg/join"
)

// ParamsVersion is the current version of join step parameters.
const ParamsVersion = 2

// legacyJoinTypes maps the version 0 integer type to its name.
var legacyJoinTypes = []string{"left", "inner", "right"}

// JoinParams are the parameters of a join step.
type JoinParams struct {
	Left  string `mapstructure:"left"`
	Right string `mapstructure:"right"`

	// On names key columns present under the same name in both tabs.
	// Names missing from either tab are dropped.
	On []string `mapstructure:"on"`

	// LeftOn and RightOn pair key columns positionally and are validated
	// strictly. They take precedence over On.
	LeftOn  []string `mapstructure:"left_on"`
	RightOn []string `mapstructure:"right_on"`

	// Auto picks the key from matching column names when no keys are given.
	Auto bool `mapstructure:"auto"`

	// RightColumns lists the right columns to carry; RightAll carries every
	// right column whose name is not already on the left.
	RightColumns []string `mapstructure:"right_columns"`
	RightAll     bool     `mapstructure:"right_all"`

	Type string `mapstructure:"type"`
}

// MigrateParams upgrades raw step parameters to ParamsVersion. The input is
// not modified.
//
// Version 0 stores type as an index into [left, inner, right] and on and
// right_columns as comma-separated strings. Version 1 uses a type name and
// lists. Version 2 adds right_all, false for older parameters.
func MigrateParams(raw map[string]any) (map[string]any, error) {
	params := maps.Clone(raw)
	if params == nil {
		params = map[string]any{}
	}
	if idx, ok := legacyTypeIndex(params["type"]); ok {
		var err error
		if params, err = migrateV0ToV1(params, idx); err != nil {
			return nil, err
		}
	}
	if _, ok := params["right_all"]; !ok {
		params = migrateV1ToV2(params)
	}
	return params, nil
}

func legacyTypeIndex(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		if x == float64(int(x)) {
			return int(x), true
		}
	}
	return 0, false
}

func migrateV0ToV1(params map[string]any, typeIdx int) (map[string]any, error) {
	if typeIdx < 0 || typeIdx >= len(legacyJoinTypes) {
		return nil, fmt.Errorf("join type index %d out of range", typeIdx)
	}
	out := maps.Clone(params)
	out["type"] = legacyJoinTypes[typeIdx]
	for _, key := range []string{"on", "right_columns"} {
		if s, ok := out[key].(string); ok {
			out[key] = splitColumnList(s)
		}
	}
	return out, nil
}

func migrateV1ToV2(params map[string]any) map[string]any {
	out := maps.Clone(params)
	out["right_all"] = false
	return out
}

func splitColumnList(s string) []any {
	out := []any{}
	for _, c := range strings.Split(s, ",") {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// DecodeParams decodes migrated parameters, rejecting unknown keys.
func DecodeParams(params map[string]any) (JoinParams, error) {
	var out JoinParams
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return JoinParams{}, err
	}
	if err := dec.Decode(params); err != nil {
		return JoinParams{}, fmt.Errorf("invalid join parameters: %w", err)
	}
	return out, nil
}

// Resolve turns the parameters into a join request for left and right. It
// returns nil when the step should pass left through unchanged: no right tab
// was chosen, or no key column survives.
func (p JoinParams) Resolve(left, right *core.Table, defaultType core.JoinType, logger *slog.Logger) (*core.JoinPlan, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if p.Right == "" || right == nil {
		return nil, nil
	}

	jt := defaultType
	if p.Type != "" {
		parsed, err := core.ParseJoinType(p.Type)
		if err != nil {
			return nil, &core.KeySpecError{Reason: err.Error()}
		}
		jt = parsed
	}

	var req core.JoinPlan
	switch {
	case len(p.LeftOn) > 0 || len(p.RightOn) > 0:
		req = core.JoinPlan{LeftKeys: p.LeftOn, RightKeys: p.RightOn}
	case len(p.On) > 0:
		keys := keepColumns(p.On, func(c string) bool {
			return left.Column(c) != nil && right.Column(c) != nil
		}, logger, "dropping join column missing from a tab")
		if len(keys) == 0 {
			return nil, nil
		}
		req = core.JoinPlan{LeftKeys: keys, RightKeys: slices.Clone(keys)}
	case p.Auto:
		proposed, err := join.Plan(left, right, nil)
		if err != nil {
			return nil, err
		}
		req = proposed
	default:
		return nil, nil
	}
	req.Type = jt
	req.RightColumns = p.rightColumns(left, right, req.RightKeys, logger)
	return &req, nil
}

func (p JoinParams) rightColumns(left, right *core.Table, rightKeys []string, logger *slog.Logger) []string {
	isKey := make(map[string]bool, len(rightKeys))
	for _, k := range rightKeys {
		isKey[k] = true
	}
	if p.RightAll {
		out := []string{}
		for _, name := range right.Names() {
			if left.Column(name) == nil && !isKey[name] {
				out = append(out, name)
			}
		}
		return out
	}

	requested := slices.DeleteFunc(slices.Clone(p.RightColumns), func(c string) bool { return isKey[c] })
	wanted := keepColumns(requested, func(c string) bool {
		return right.Column(c) != nil
	}, logger, "dropping right column missing from the right tab")
	want := make(map[string]bool, len(wanted))
	for _, c := range wanted {
		want[c] = true
	}
	out := []string{}
	for _, name := range right.Names() {
		if want[name] {
			out = append(out, name)
		}
	}
	return out
}

func keepColumns(names []string, ok func(string) bool, logger *slog.Logger, msg string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		if !ok(n) {
			logger.Warn(msg, "column", n)
			continue
		}
		out = append(out, n)
	}
	return out
}
