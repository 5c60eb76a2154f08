package command

import (
	"testing"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
	"github.com/tangramdotdev/tgproxy/internal/hostsys"
)

// TestWorkspaceRemapStability covers scenario 4: two commands differing only
// by the filesystem root baked into an artifact checkin (here simulated by
// two different sandbox roots) must still unrender to the same template and
// therefore hash to the same CommandId, as long as the artifact ids match.
func TestWorkspaceRemapStability(t *testing.T) {
	id := artifact.IdFromBytes([]byte("crate-source"))
	exe := artifact.IdFromBytes([]byte("tgrustc"))

	build := func(root string) Command {
		remap := artifact.Join("--remap-path-prefix=", artifact.NewReferent(id), "=.").Render(root)
		remapTmpl, err := artifact.Unrender(root, remap)
		if err != nil {
			t.Fatalf("unrender %q: %v", remap, err)
		}
		source := artifact.Ref(artifact.NewReferent(id)).Render(root)
		sourceTmpl, err := artifact.Unrender(root, source)
		if err != nil {
			t.Fatalf("unrender %q: %v", source, err)
		}
		return Command{
			Executable: exe,
			Host:       hostsys.X8664Linux,
			Args: []Arg{
				Lit("--crate-name"),
				Lit("hello"),
				Tmpl(remapTmpl),
			},
			Env: map[string]artifact.Template{
				"TGRUSTC_SOURCE": sourceTmpl,
			},
		}
	}

	a := build("/tmp/sandbox-a")
	b := build("/tmp/sandbox-b")
	if a.Id() != b.Id() {
		t.Fatalf("expected identical CommandId, got %s vs %s", a.Id(), b.Id())
	}
}

func TestArgOrderAffectsId(t *testing.T) {
	exe := artifact.IdFromBytes([]byte("tgrustc"))
	base := Command{Executable: exe, Host: hostsys.X8664Linux}

	a := base
	a.Args = []Arg{Lit("--edition"), Lit("2021")}
	b := base
	b.Args = []Arg{Lit("2021"), Lit("--edition")}

	if a.Id() == b.Id() {
		t.Fatal("expected different CommandId for different argument order")
	}
}
