package batch

// QueryFields 语句中用到的列集合，Merge 与 Update 不相交
type QueryFields struct {
	Return   []string
	Update   []string
	Merge    []string
	Conflict []string
}

// resolveFields 补全默认值：
// Return 为全部列加主键列，Update 为全部列，Conflict 为主键列；最后从 Update 中剔除 Merge。
func resolveFields(given QueryFields, columns, idColumns []string) QueryFields {
	out := QueryFields{
		Return:   given.Return,
		Update:   given.Update,
		Merge:    append([]string(nil), given.Merge...),
		Conflict: given.Conflict,
	}
	if len(out.Return) == 0 {
		out.Return = unique(append(append([]string(nil), columns...), idColumns...))
	}
	if len(out.Update) == 0 {
		out.Update = columns
	}
	if len(out.Conflict) == 0 {
		out.Conflict = idColumns
	}
	out.Update = without(out.Update, out.Merge)
	return out
}

func unique(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func without(items, drop []string) []string {
	if len(drop) == 0 {
		return append([]string(nil), items...)
	}
	skip := make(map[string]struct{}, len(drop))
	for _, s := range drop {
		skip[s] = struct{}{}
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		if _, ok := skip[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
