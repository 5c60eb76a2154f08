package manifest

// MutationOp enumerates the env mutation kinds applied by the wrapper at
// launch time (§4.7 "Env mutations").
type MutationOp string

const (
	Unset       MutationOp = "unset"
	Set         MutationOp = "set"
	SetIfUnset  MutationOp = "set_if_unset"
	Prepend     MutationOp = "prepend"
	Append      MutationOp = "append"
	Prefix      MutationOp = "prefix"
	Suffix      MutationOp = "suffix"
	Merge       MutationOp = "merge"
)

// Mutation is a map of env var name to the mutation applied to it. Set/
// SetIfUnset carry a single value; Prepend/Append carry a list (joined with
// Separator at apply time); Prefix/Suffix carry a single templated value
// plus Separator; Merge carries a map to fold in.
type Mutation map[string]VarMutation

type VarMutation struct {
	Op        MutationOp        `json:"op"`
	Value     Template          `json:"value,omitempty"`
	List      []Template        `json:"list,omitempty"`
	Separator string            `json:"separator,omitempty"`
	Map       map[string]string `json:"map,omitempty"`
}

// Apply computes the resulting environment by applying every mutation in m
// to base (a snapshot of os.Environ()-shaped key/value pairs), rendering
// Templates against storeRoot.
func (m Mutation) Apply(base map[string]string, storeRoot string) (map[string]string, error) {
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	for key, vm := range m {
		if err := vm.apply(out, key, storeRoot); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (vm VarMutation) apply(env map[string]string, key, storeRoot string) error {
	switch vm.Op {
	case Unset:
		delete(env, key)
	case Set:
		rendered, err := renderTemplate(vm.Value, storeRoot)
		if err != nil {
			return err
		}
		env[key] = rendered
	case SetIfUnset:
		if _, ok := env[key]; ok {
			return nil
		}
		rendered, err := renderTemplate(vm.Value, storeRoot)
		if err != nil {
			return err
		}
		env[key] = rendered
	case Prepend:
		items, err := renderList(vm.List, storeRoot)
		if err != nil {
			return err
		}
		sep := separatorOr(vm.Separator)
		if existing, ok := env[key]; ok && existing != "" {
			env[key] = joinWith(items, sep) + sep + existing
		} else {
			env[key] = joinWith(items, sep)
		}
	case Append:
		items, err := renderList(vm.List, storeRoot)
		if err != nil {
			return err
		}
		sep := separatorOr(vm.Separator)
		if existing, ok := env[key]; ok && existing != "" {
			env[key] = existing + sep + joinWith(items, sep)
		} else {
			env[key] = joinWith(items, sep)
		}
	case Prefix:
		rendered, err := renderTemplate(vm.Value, storeRoot)
		if err != nil {
			return err
		}
		env[key] = rendered + vm.Separator + env[key]
	case Suffix:
		rendered, err := renderTemplate(vm.Value, storeRoot)
		if err != nil {
			return err
		}
		env[key] = env[key] + vm.Separator + rendered
	case Merge:
		// key is ignored; Map itself names the variables to merge.
		for k, v := range vm.Map {
			env[k] = v
		}
	}
	return nil
}

func renderTemplate(t Template, storeRoot string) (string, error) {
	tmpl, err := t.ToArtifactTemplate()
	if err != nil {
		return "", err
	}
	return tmpl.Render(storeRoot), nil
}

func renderList(ts []Template, storeRoot string) ([]string, error) {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		s, err := renderTemplate(t, storeRoot)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func separatorOr(sep string) string {
	if sep == "" {
		return ":"
	}
	return sep
}

func joinWith(items []string, sep string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += sep
		}
		out += it
	}
	return out
}
