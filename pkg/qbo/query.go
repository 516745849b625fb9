package qbo

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/fivetwenty-io/qbo-client/internal/constants"
)

// Query limits applied during compilation.
const (
	MaxQueryResults      = constants.MaxQueryResults
	DefaultStartPosition = constants.DefaultStartPosition
)

// Operator is a comparison operator of the query language.
type Operator string

// Supported operators.
const (
	OpEqual        Operator = "="
	OpIn           Operator = "IN"
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
	OpLike         Operator = "LIKE"
)

// Control field names. A criterion using one of these as its field is lifted
// out of the where clause into the pagination/sort descriptor.
const (
	fieldLimit    = "limit"
	fieldOffset   = "offset"
	fieldAsc      = "asc"
	fieldDesc     = "desc"
	fieldSort     = "sort"
	fieldFetchAll = "fetchAll"
	fieldCount    = "count"
	fieldItems    = "items"
	fieldField    = "field"
	fieldValue    = "value"
	fieldOperator = "operator"
)

// Criterion is one field/operator/value filter condition.
type Criterion struct {
	Field    string   `json:"field"              yaml:"field"`
	Value    any      `json:"value"              yaml:"value"`
	Operator Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
}

// SortField is one entry of an ordered sort list. An empty Direction is
// omitted from the compiled query.
type SortField struct {
	Field     string `json:"field"               yaml:"field"`
	Direction string `json:"direction,omitempty" yaml:"direction,omitempty"`
}

// QueryBase carries pagination and sort controls. Pointer and non-empty
// fields mark presence so two sources can be checked for conflicts.
type QueryBase struct {
	Limit    *int        `json:"limit,omitempty"    yaml:"limit,omitempty"`
	Offset   *int        `json:"offset,omitempty"   yaml:"offset,omitempty"`
	Asc      string      `json:"asc,omitempty"      yaml:"asc,omitempty"`
	Desc     string      `json:"desc,omitempty"     yaml:"desc,omitempty"`
	Sort     []SortField `json:"sort,omitempty"     yaml:"sort,omitempty"`
	FetchAll *bool       `json:"fetchAll,omitempty" yaml:"fetchAll,omitempty"`
	// Deprecated: use the count entrypoint instead.
	Count *bool `json:"count,omitempty" yaml:"count,omitempty"`
}

// QueryData combines controls with a list of criteria.
type QueryData struct {
	QueryBase

	Items []Criterion `json:"items,omitempty" yaml:"items,omitempty"`
}

// RawQuery is a complete query string sent as-is.
type RawQuery string

// Int returns a pointer to n.
func Int(n int) *int {
	return &n
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}

// EffectiveLimit returns the compiled page size.
func (q *QueryData) EffectiveLimit() int {
	if q == nil || q.Limit == nil {
		return MaxQueryResults
	}

	return *q.Limit
}

// EffectiveOffset returns the compiled start position.
func (q *QueryData) EffectiveOffset() int {
	if q == nil || q.Offset == nil {
		return DefaultStartPosition
	}

	return *q.Offset
}

// WantsFetchAll reports whether every page should be fetched.
func (q *QueryData) WantsFetchAll() bool {
	return q != nil && q.FetchAll != nil && *q.FetchAll
}

// Clone returns a deep copy of the query data.
func (q *QueryData) Clone() *QueryData {
	if q == nil {
		return nil
	}

	clone := &QueryData{QueryBase: q.QueryBase.clone()}
	if q.Items != nil {
		clone.Items = make([]Criterion, len(q.Items))
		copy(clone.Items, q.Items)
	}

	return clone
}

func (b QueryBase) clone() QueryBase {
	out := QueryBase{Asc: b.Asc, Desc: b.Desc}
	if b.Limit != nil {
		out.Limit = Int(*b.Limit)
	}

	if b.Offset != nil {
		out.Offset = Int(*b.Offset)
	}

	if b.FetchAll != nil {
		out.FetchAll = Bool(*b.FetchAll)
	}

	if b.Count != nil {
		out.Count = Bool(*b.Count)
	}

	if b.Sort != nil {
		out.Sort = make([]SortField, len(b.Sort))
		copy(out.Sort, b.Sort)
	}

	return out
}

// Compile translates a query input into a query string for entity. The input
// may be nil, a string or RawQuery, a Criterion, a slice of criteria, a
// QueryData, or the equivalent loosely typed JSON shapes. Raw strings are
// returned unchanged with no normalized data.
func Compile(entity string, input any) (string, *QueryData, error) {
	return compile(entity, input, false)
}

// CompileCount is Compile for the count entrypoint. The deprecated count
// control is rejected because the result is already a count query.
func CompileCount(entity string, input any) (string, *QueryData, error) {
	return compile(entity, input, true)
}

func compile(entity string, input any, countEntrypoint bool) (string, *QueryData, error) {
	if entity == "" {
		return "", nil, &ValidationError{Field: "entity", Reason: "entity name is required"}
	}

	selectClause := "select * from " + entity
	if countEntrypoint {
		selectClause = "select count(*) from " + entity
	}

	shape, err := normalizeInput(input)
	if err != nil {
		return "", nil, err
	}

	switch {
	case shape.absent:
		return selectClause, nil, nil
	case shape.raw != nil:
		return *shape.raw, nil, nil
	}

	criteria, derived, err := liftControlFields(shape.items)
	if err != nil {
		return "", nil, err
	}

	base, err := mergeBases(shape.base, derived)
	if err != nil {
		return "", nil, err
	}

	if base.Count != nil && *base.Count {
		if countEntrypoint {
			return "", nil, &ValidationError{Field: fieldCount, Reason: "count cannot be requested on a count query"}
		}

		selectClause = "select count(*) from " + entity
	}

	if base.Limit == nil || *base.Limit < 1 || *base.Limit > MaxQueryResults {
		base.Limit = Int(MaxQueryResults)
	}

	if base.Offset == nil || *base.Offset < 1 {
		base.Offset = Int(DefaultStartPosition)
	}

	parts := []string{selectClause}

	if len(criteria) > 0 {
		fragments := make([]string, 0, len(criteria))
		for _, c := range criteria {
			fragment, renderErr := renderCriterion(c)
			if renderErr != nil {
				return "", nil, renderErr
			}

			fragments = append(fragments, fragment)
		}

		parts = append(parts, "where "+strings.Join(fragments, " and "))
	}

	switch {
	case base.Asc != "":
		parts = append(parts, "orderby "+base.Asc+" asc")
	case base.Desc != "":
		parts = append(parts, "orderby "+base.Desc+" desc")
	case len(base.Sort) > 0:
		parts = append(parts, "orderby "+renderSort(base.Sort))
	}

	parts = append(parts,
		"startposition "+strconv.Itoa(*base.Offset),
		"maxresults "+strconv.Itoa(*base.Limit),
	)

	return strings.Join(parts, " "), &QueryData{QueryBase: base, Items: criteria}, nil
}

// inputShape is the discriminated form of a query input.
type inputShape struct {
	absent bool
	raw    *string
	base   QueryBase
	items  []Criterion
}

func normalizeInput(input any) (inputShape, error) {
	switch v := input.(type) {
	case nil:
		return inputShape{absent: true}, nil
	case string:
		return inputShape{raw: &v}, nil
	case RawQuery:
		raw := string(v)

		return inputShape{raw: &raw}, nil
	case Criterion:
		return inputShape{items: []Criterion{v}}, nil
	case *Criterion:
		if v == nil {
			return inputShape{absent: true}, nil
		}

		return inputShape{items: []Criterion{*v}}, nil
	case []Criterion:
		items := make([]Criterion, len(v))
		copy(items, v)

		return inputShape{items: items}, nil
	case QueryData:
		clone := v.Clone()

		return inputShape{base: clone.QueryBase, items: clone.Items}, nil
	case *QueryData:
		if v == nil {
			return inputShape{absent: true}, nil
		}

		clone := v.Clone()

		return inputShape{base: clone.QueryBase, items: clone.Items}, nil
	case json.RawMessage:
		return normalizeJSON(v)
	case []byte:
		return normalizeJSON(v)
	case map[string]any:
		return normalizeMap(v)
	case []any:
		items, err := decodeCriteria(v)
		if err != nil {
			return inputShape{}, err
		}

		return inputShape{items: items}, nil
	case []map[string]any:
		items := make([]Criterion, 0, len(v))
		for i, m := range v {
			c, err := decodeCriterion(m)
			if err != nil {
				return inputShape{}, fmt.Errorf("criterion %d: %w", i, err)
			}

			items = append(items, c)
		}

		return inputShape{items: items}, nil
	default:
		return inputShape{}, &ValidationError{Field: "query", Reason: fmt.Sprintf("unsupported query input type %T", input)}
	}
}

func normalizeJSON(data []byte) (inputShape, error) {
	var decoded any

	err := json.Unmarshal(data, &decoded)
	if err != nil {
		return inputShape{}, &ValidationError{Field: "query", Reason: "invalid JSON: " + err.Error()}
	}

	if s, ok := decoded.(string); ok {
		return inputShape{raw: &s}, nil
	}

	return normalizeInput(decoded)
}

func normalizeMap(m map[string]any) (inputShape, error) {
	if rawItems, ok := m[fieldItems]; ok {
		list, isList := rawItems.([]any)
		if !isList {
			if typed, isTyped := rawItems.([]Criterion); isTyped {
				list = make([]any, len(typed))
				for i := range typed {
					list[i] = typed[i]
				}
			} else if rawItems != nil {
				return inputShape{}, &ValidationError{Field: fieldItems, Reason: "items must be a list of criteria"}
			}
		}

		items, err := decodeCriteria(list)
		if err != nil {
			return inputShape{}, err
		}

		base, err := decodeBase(m, fieldItems)
		if err != nil {
			return inputShape{}, err
		}

		return inputShape{base: base, items: items}, nil
	}

	if _, ok := m[fieldField]; ok {
		c, err := decodeCriterion(m)
		if err != nil {
			return inputShape{}, err
		}

		return inputShape{items: []Criterion{c}}, nil
	}

	base, err := decodeBase(m, "")
	if err != nil {
		return inputShape{}, err
	}

	return inputShape{base: base}, nil
}

func decodeCriteria(list []any) ([]Criterion, error) {
	items := make([]Criterion, 0, len(list))

	for i, entry := range list {
		switch v := entry.(type) {
		case Criterion:
			items = append(items, v)
		case *Criterion:
			if v == nil {
				return nil, &ValidationError{Field: fmt.Sprintf("items[%d]", i), Reason: "criterion is nil"}
			}

			items = append(items, *v)
		case map[string]any:
			c, err := decodeCriterion(v)
			if err != nil {
				return nil, fmt.Errorf("criterion %d: %w", i, err)
			}

			items = append(items, c)
		default:
			return nil, &ValidationError{Field: fmt.Sprintf("items[%d]", i), Reason: fmt.Sprintf("unsupported criterion type %T", entry)}
		}
	}

	return items, nil
}

func decodeCriterion(m map[string]any) (Criterion, error) {
	field, ok := m[fieldField].(string)
	if !ok || field == "" {
		return Criterion{}, &ValidationError{Field: fieldField, Reason: "criterion field must be a non-empty string"}
	}

	c := Criterion{Field: field, Value: m[fieldValue]}

	if rawOp, present := m[fieldOperator]; present && rawOp != nil {
		op, isString := rawOp.(string)
		if !isString {
			return Criterion{}, &ValidationError{Field: field, Reason: fmt.Sprintf("operator must be a string, got %T", rawOp)}
		}

		c.Operator = Operator(op)
	}

	for key := range m {
		if key != fieldField && key != fieldValue && key != fieldOperator {
			return Criterion{}, &ValidationError{Field: field, Reason: fmt.Sprintf("unexpected criterion key %q", key)}
		}
	}

	return c, nil
}

// decodeBase reads the control fields of a QueryData-shaped map. skip names a
// key that is handled by the caller.
func decodeBase(m map[string]any, skip string) (QueryBase, error) {
	var base QueryBase

	for key, value := range m {
		if key == skip {
			continue
		}

		if !isControlField(key) {
			return QueryBase{}, &ValidationError{Field: key, Reason: "unknown query field"}
		}

		err := setControl(&base, key, value)
		if err != nil {
			return QueryBase{}, err
		}
	}

	return base, nil
}

func isControlField(name string) bool {
	switch name {
	case fieldLimit, fieldOffset, fieldAsc, fieldDesc, fieldSort, fieldFetchAll, fieldCount:
		return true
	default:
		return false
	}
}

// liftControlFields separates criteria whose field names a control field.
// The input slice is not modified.
func liftControlFields(items []Criterion) ([]Criterion, QueryBase, error) {
	var derived QueryBase

	seen := make(map[string]bool)
	criteria := make([]Criterion, 0, len(items))

	for _, c := range items {
		if !isControlField(c.Field) {
			criteria = append(criteria, c)

			continue
		}

		if seen[c.Field] {
			return nil, QueryBase{}, &ValidationError{Field: c.Field, Reason: "control field given more than once"}
		}

		seen[c.Field] = true

		err := setControl(&derived, c.Field, c.Value)
		if err != nil {
			return nil, QueryBase{}, err
		}
	}

	return criteria, derived, nil
}

func setControl(base *QueryBase, name string, value any) error {
	switch name {
	case fieldLimit, fieldOffset:
		n, err := toInt(name, value)
		if err != nil {
			return err
		}

		if name == fieldLimit {
			base.Limit = &n
		} else {
			base.Offset = &n
		}
	case fieldAsc, fieldDesc:
		s, ok := value.(string)
		if !ok {
			return &ValidationError{Field: name, Reason: fmt.Sprintf("must be a field name, got %T", value)}
		}

		if name == fieldAsc {
			base.Asc = s
		} else {
			base.Desc = s
		}
	case fieldSort:
		sortFields, err := toSortFields(value)
		if err != nil {
			return err
		}

		base.Sort = sortFields
	case fieldFetchAll, fieldCount:
		b, ok := value.(bool)
		if !ok {
			return &ValidationError{Field: name, Reason: fmt.Sprintf("must be a boolean, got %T", value)}
		}

		if name == fieldFetchAll {
			base.FetchAll = &b
		} else {
			base.Count = &b
		}
	}

	return nil
}

func toInt(name string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, &ValidationError{Field: name, Reason: "must be an integer"}
		}

		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, &ValidationError{Field: name, Reason: "must be an integer"}
		}

		return int(n), nil
	default:
		return 0, &ValidationError{Field: name, Reason: fmt.Sprintf("must be an integer, got %T", value)}
	}
}

func toSortFields(value any) ([]SortField, error) {
	switch v := value.(type) {
	case []SortField:
		out := make([]SortField, len(v))
		copy(out, v)

		return out, nil
	case [][]string:
		out := make([]SortField, 0, len(v))
		for _, pair := range v {
			entry := make([]any, len(pair))
			for i := range pair {
				entry[i] = pair[i]
			}

			sf, err := toSortField(entry)
			if err != nil {
				return nil, err
			}

			out = append(out, sf)
		}

		return out, nil
	case []any:
		out := make([]SortField, 0, len(v))
		for _, entry := range v {
			sf, err := toSortField(entry)
			if err != nil {
				return nil, err
			}

			out = append(out, sf)
		}

		return out, nil
	default:
		return nil, &ValidationError{Field: fieldSort, Reason: fmt.Sprintf("must be a list of sort fields, got %T", value)}
	}
}

func toSortField(entry any) (SortField, error) {
	invalid := &ValidationError{Field: fieldSort, Reason: fmt.Sprintf("invalid sort entry %v", entry)}

	switch v := entry.(type) {
	case SortField:
		return v, nil
	case string:
		return SortField{Field: v}, nil
	case []string:
		entries := make([]any, len(v))
		for i := range v {
			entries[i] = v[i]
		}

		return toSortField(entries)
	case []any:
		if len(v) == 0 || len(v) > 2 {
			return SortField{}, invalid
		}

		field, ok := v[0].(string)
		if !ok || field == "" {
			return SortField{}, invalid
		}

		sf := SortField{Field: field}

		if len(v) == 2 && v[1] != nil {
			dir, isString := v[1].(string)
			if !isString {
				return SortField{}, invalid
			}

			sf.Direction = dir
		}

		return sf, nil
	case map[string]any:
		field, ok := v[fieldField].(string)
		if !ok || field == "" {
			return SortField{}, invalid
		}

		sf := SortField{Field: field}
		if dir, isString := v["direction"].(string); isString {
			sf.Direction = dir
		}

		return sf, nil
	default:
		return SortField{}, invalid
	}
}

func mergeBases(explicit, derived QueryBase) (QueryBase, error) {
	conflict := func(field string) error {
		return &ValidationError{Field: field, Reason: "given both in the query object and as a criterion"}
	}

	merged := explicit.clone()
	extra := derived.clone()

	if extra.Limit != nil {
		if merged.Limit != nil {
			return QueryBase{}, conflict(fieldLimit)
		}

		merged.Limit = extra.Limit
	}

	if extra.Offset != nil {
		if merged.Offset != nil {
			return QueryBase{}, conflict(fieldOffset)
		}

		merged.Offset = extra.Offset
	}

	if extra.Asc != "" {
		if merged.Asc != "" {
			return QueryBase{}, conflict(fieldAsc)
		}

		merged.Asc = extra.Asc
	}

	if extra.Desc != "" {
		if merged.Desc != "" {
			return QueryBase{}, conflict(fieldDesc)
		}

		merged.Desc = extra.Desc
	}

	if len(extra.Sort) > 0 {
		if len(merged.Sort) > 0 {
			return QueryBase{}, conflict(fieldSort)
		}

		merged.Sort = extra.Sort
	}

	if extra.FetchAll != nil {
		if merged.FetchAll != nil {
			return QueryBase{}, conflict(fieldFetchAll)
		}

		merged.FetchAll = extra.FetchAll
	}

	if extra.Count != nil {
		if merged.Count != nil {
			return QueryBase{}, conflict(fieldCount)
		}

		merged.Count = extra.Count
	}

	orderings := 0
	for _, set := range []bool{merged.Asc != "", merged.Desc != "", len(merged.Sort) > 0} {
		if set {
			orderings++
		}
	}

	if orderings > 1 {
		return QueryBase{}, &ValidationError{Field: fieldSort, Reason: "only one of asc, desc and sort may be set"}
	}

	return merged, nil
}

func renderSort(fields []SortField) string {
	rendered := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Direction == "" {
			rendered = append(rendered, f.Field)
		} else {
			rendered = append(rendered, f.Field+" "+f.Direction)
		}
	}

	return strings.Join(rendered, ",")
}

func renderCriterion(c Criterion) (string, error) {
	if c.Field == "" {
		return "", &ValidationError{Field: fieldField, Reason: "criterion field is required"}
	}

	if c.Value == nil {
		return "", &ValidationError{Field: c.Field, Reason: "criterion value is required"}
	}

	list, isList := asList(c.Value)

	op := Operator(strings.ToUpper(strings.TrimSpace(string(c.Operator))))
	if op == "" {
		op = OpEqual
		if isList {
			op = OpIn
		}
	}

	switch op {
	case OpIn:
		if !isList {
			return "", &ValidationError{Field: c.Field, Reason: "IN requires a list value"}
		}

		if len(list) == 0 {
			return "", &ValidationError{Field: c.Field, Reason: "IN requires at least one value"}
		}

		values := make([]string, 0, len(list))
		for _, item := range list {
			rendered, err := renderScalar(c.Field, item)
			if err != nil {
				return "", err
			}

			values = append(values, rendered)
		}

		return fmt.Sprintf("%s IN (%s)", c.Field, strings.Join(values, ",")), nil
	case OpEqual, OpLess, OpGreater, OpLessEqual, OpGreaterEqual, OpLike:
		if isList {
			return "", &ValidationError{Field: c.Field, Reason: fmt.Sprintf("operator %s does not accept a list value", op)}
		}

		rendered, err := renderScalar(c.Field, c.Value)
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("%s %s %s", c.Field, op, rendered), nil
	default:
		return "", &ValidationError{Field: c.Field, Reason: fmt.Sprintf("unknown operator %q", c.Operator)}
	}
}

// asList reports whether v is a slice or array, returning its elements.
func asList(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}

	switch v.(type) {
	case []byte, json.RawMessage:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}

	return out, true
}

func renderScalar(field string, v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", &ValidationError{Field: field, Reason: "value is required"}
	case string:
		return quote(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case json.Number:
		return val.String(), nil
	case time.Time:
		return quote(val.Format(time.RFC3339)), nil
	case fmt.Stringer:
		return quote(val.String()), nil
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.String:
		return quote(rv.String()), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	default:
		return "", &ValidationError{Field: field, Reason: fmt.Sprintf("unsupported value type %T", v)}
	}
}

// Backslashes are escaped first so a trailing one cannot swallow the
// closing quote.
var literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quote(s string) string {
	return "'" + literalEscaper.Replace(s) + "'"
}
