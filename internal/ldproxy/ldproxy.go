package ldproxy

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tangramdotdev/tgproxy/internal/artifact"
	"github.com/tangramdotdev/tgproxy/internal/hostsys"
	"github.com/tangramdotdev/tgproxy/internal/manifest"
	"github.com/tangramdotdev/tgproxy/internal/storeclient"
	"github.com/tangramdotdev/tgproxy/internal/tgerror"
)

const defaultMaxDepth = 16

// Options is the linker proxy's read_options() equivalent: flags come partly
// from the environment (set by the calling rustc/cc invocation) and partly
// from --tg-* self-flags interspersed with the real linker arguments.
type Options struct {
	CommandPath                    string
	CommandArgs                    []string
	Passthrough                    bool
	InterpreterPath                string
	InterpreterArgs                []string
	InjectionPath                  string
	LibraryPaths                   []string
	LibraryPathOptimization        LibraryPathOptLevel
	MaxDepth                       int
	OutputPath                     string
	AdditionalLibraryCandidatePaths []string
}

// ReadOptions parses argv (excluding argv[0]) plus the proxy's recognized
// env vars into Options, mirroring read_options in the original linker
// proxy: --tg-* flags are stripped from the forwarded command line, -o and
// -L are tracked for later analysis while still being forwarded verbatim,
// and any bare library-looking argument is recorded as an additional
// candidate so libraries the caller passed directly (not via -L) still
// participate in closure/optimization.
func ReadOptions(args []string, env map[string]string, triple hostsys.Triple) (Options, error) {
	commandPath, ok := env["TANGRAM_LINKER_COMMAND_PATH"]
	if !ok {
		return Options{}, tgerror.New(tgerror.EnvError, "TANGRAM_LINKER_COMMAND_PATH must be set")
	}

	opts := Options{
		CommandPath:             commandPath,
		LibraryPathOptimization: DefaultOptLevel(),
		MaxDepth:                defaultMaxDepth,
	}
	if _, ok := env["TANGRAM_LINKER_PASSTHROUGH"]; ok {
		opts.Passthrough = true
	}
	opts.InterpreterPath = env["TANGRAM_LINKER_INTERPRETER_PATH"]
	if combined, ok := env["TANGRAM_LINKER_INTERPRETER_ARGS"]; ok {
		opts.InterpreterArgs = strings.Fields(combined)
	}
	if s, ok := env["TANGRAM_LINKER_MAX_DEPTH"]; ok {
		if n, err := strconv.Atoi(s); err == nil {
			opts.MaxDepth = n
		}
	}
	opts.InjectionPath = env["TANGRAM_LINKER_INJECTION_PATH"]
	if s, ok := env["TANGRAM_LINKER_LIBRARY_PATH_OPT_LEVEL"]; ok {
		opts.LibraryPathOptimization = ParseOptLevel(s)
	}

	var outputPath string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "--tg-") {
			switch {
			case strings.HasPrefix(arg, "--tg-library-path-opt-level="):
				opts.LibraryPathOptimization = ParseOptLevel(strings.TrimPrefix(arg, "--tg-library-path-opt-level="))
			case strings.HasPrefix(arg, "--tg-max-depth="):
				if n, err := strconv.Atoi(strings.TrimPrefix(arg, "--tg-max-depth=")); err == nil {
					opts.MaxDepth = n
				}
			case strings.HasPrefix(arg, "--tg-passthrough"):
				opts.Passthrough = true
			default:
				opts.CommandArgs = append(opts.CommandArgs, arg)
			}
		} else {
			opts.CommandArgs = append(opts.CommandArgs, arg)
		}

		switch {
		case arg == "-o" || arg == "--output":
			if i+1 < len(args) {
				i++
				opts.CommandArgs = append(opts.CommandArgs, args[i])
				outputPath = args[i]
			}
		case strings.HasPrefix(arg, "--output="):
			outputPath = strings.TrimPrefix(arg, "--output=")
		case strings.HasPrefix(arg, "-o") && arg != "-o":
			outputPath = strings.TrimPrefix(arg, "-o")
		}

		switch {
		case arg == "-L" || arg == "--library_path":
			if i+1 < len(args) {
				i++
				opts.CommandArgs = append(opts.CommandArgs, args[i])
				opts.LibraryPaths = append(opts.LibraryPaths, args[i])
			}
		case strings.HasPrefix(arg, "--library-path="):
			opts.LibraryPaths = append(opts.LibraryPaths, strings.TrimPrefix(arg, "--library-path="))
		case strings.HasPrefix(arg, "-L") && arg != "-L":
			opts.LibraryPaths = append(opts.LibraryPaths, strings.TrimPrefix(arg, "-L"))
		}

		if IsLibraryCandidate(arg, triple) {
			if canon, err := filepath.Abs(arg); err == nil {
				opts.AdditionalLibraryCandidatePaths = append(opts.AdditionalLibraryCandidatePaths, canon)
			}
		}
	}

	if outputPath == "" {
		outputPath = "a.out"
	}
	opts.OutputPath = outputPath
	return opts, nil
}

// Result describes what the linker proxy decided to do, for logging/tests.
type Result struct {
	Wrapped      bool
	StaticExit   bool
	Passthrough  bool
	OutputPath   string
	MissingLibs  []string
}

// CreateWrapper implements create_wrapper: analyze the linker's output,
// and — if it is a dynamically-linked executable — replace it with a
// manifest-carrying wrapper. A shared library is left as the linker wrote
// it: its optimized library paths are checked out and any unresolved
// libraries are reported in the Result, but the paths are not recorded as
// dependencies of the library file.
func CreateWrapper(ctx context.Context, store storeclient.Store, opts Options, triple hostsys.Triple) (Result, error) {
	analysis, err := AnalyzeFile(opts.OutputPath, triple)
	if err != nil {
		return Result{}, tgerror.Wrap(tgerror.AnalysisError, err, "failed to analyze linker output %s", opts.OutputPath)
	}

	if analysis.IsExecutable && analysis.Interpreter.Kind == InterpreterNone {
		return Result{StaticExit: true, OutputPath: opts.OutputPath}, nil
	}

	needed := NeededLibraries{}
	for _, name := range analysis.NeededLibraries {
		needed[name] = nil
	}

	cmdLinePaths, err := candidateLibraryDirectory(ctx, store, opts.AdditionalLibraryCandidatePaths, needed, triple)
	if err != nil {
		return Result{}, err
	}

	var libraryPaths []artifact.Referent
	if cmdLinePaths != nil {
		libraryPaths = append(libraryPaths, *cmdLinePaths)
	}
	for _, p := range opts.LibraryPaths {
		ref, ok := store.ArtifactPathDetect(p)
		if ok {
			libraryPaths = append(libraryPaths, ref)
			continue
		}
		if canon, err := filepath.Abs(p); err == nil {
			if ref, err := checkinLocalLibraryPath(ctx, store, canon, triple); err == nil && ref != nil {
				libraryPaths = append(libraryPaths, *ref)
			}
		}
	}

	outputPath, err := filepath.Abs(opts.OutputPath)
	if err != nil {
		return Result{}, tgerror.Wrap(tgerror.StoreError, err, "cannot canonicalize output path")
	}
	outputID, err := store.Checkin(ctx, outputPath, storeclient.CheckinArg{Deterministic: true})
	if err != nil {
		return Result{}, err
	}

	var optimized []artifact.Referent
	if len(libraryPaths) > 0 {
		optimized, err = OptimizeLibraryPaths(ctx, store, analysis.NeededLibraries, libraryPaths, needed, opts.LibraryPathOptimization, opts.MaxDepth)
		if err != nil {
			return Result{}, err
		}
	}

	_, missing := FinalizeLibraryPaths(ctx, store, optimized, needed)

	if analysis.IsExecutable {
		m := buildManifest(outputID, opts, analysis, optimized)
		payload, err := m.Serialize()
		if err != nil {
			return Result{}, err
		}
		stub, err := os.ReadFile(opts.OutputPath)
		if err != nil {
			return Result{}, tgerror.Wrap(tgerror.StoreError, err, "failed to read linker output")
		}
		format := manifest.DetectFormat(stub)
		embedded, err := manifest.Embed(format, stub, payload)
		if err != nil {
			return Result{}, err
		}
		if err := os.Remove(opts.OutputPath); err != nil {
			return Result{}, tgerror.Wrap(tgerror.StoreError, err, "failed to remove output file")
		}
		if err := os.WriteFile(opts.OutputPath, embedded, 0o755); err != nil {
			return Result{}, tgerror.Wrap(tgerror.StoreError, err, "failed to write wrapper")
		}
		return Result{Wrapped: true, OutputPath: opts.OutputPath, MissingLibs: missing}, nil
	}

	// Shared library output: the file is left unchanged; its library paths
	// are not recorded as dependencies of it.
	return Result{Wrapped: len(optimized) > 0, OutputPath: opts.OutputPath, MissingLibs: missing}, nil
}

func buildManifest(outputID artifact.Id, opts Options, analysis AnalyzeResult, libraryPaths []artifact.Referent) manifest.Manifest {
	m := manifest.Manifest{
		Executable: manifest.Executable{
			Kind: manifest.ExecutablePath,
			Path: manifest.FromArtifactTemplate(artifact.Template{artifact.ArtifactRef(artifact.NewReferent(outputID))}),
		},
	}
	switch analysis.Interpreter.Kind {
	case InterpreterDefault:
		interp := &manifest.Interpreter{Kind: analysis.Interpreter.Flavor}
		if opts.InterpreterPath != "" {
			interp.Path = manifest.FromArtifactTemplate(artifact.Template{artifact.Literal(opts.InterpreterPath)})
		}
		for _, a := range opts.InterpreterArgs {
			interp.Args = append(interp.Args, manifest.FromArtifactTemplate(artifact.Template{artifact.Literal(a)}))
		}
		for _, ref := range libraryPaths {
			interp.LibraryPaths = append(interp.LibraryPaths, manifest.FromArtifactTemplate(artifact.Template{artifact.ArtifactRef(ref)}))
		}
		if opts.InjectionPath != "" {
			interp.Preloads = append(interp.Preloads, manifest.FromArtifactTemplate(artifact.Template{artifact.Literal(opts.InjectionPath)}))
		}
		m.Interpreter = interp
	case InterpreterPath:
		interp := &manifest.Interpreter{
			Kind: manifest.Normal,
			Path: manifest.FromArtifactTemplate(artifact.Template{artifact.Literal(analysis.Interpreter.Path)}),
		}
		for _, ref := range libraryPaths {
			interp.LibraryPaths = append(interp.LibraryPaths, manifest.FromArtifactTemplate(artifact.Template{artifact.ArtifactRef(ref)}))
		}
		m.Interpreter = interp
	}
	return m
}

func candidateLibraryDirectory(ctx context.Context, store storeclient.Store, paths []string, needed NeededLibraries, triple hostsys.Triple) (*artifact.Referent, error) {
	entries := map[string]artifact.Artifact{}
	for _, path := range paths {
		analysis, err := AnalyzeFile(path, triple)
		if err != nil || analysis.Name == "" {
			continue
		}
		if _, tracked := needed[analysis.Name]; !tracked {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		entries[analysis.Name] = artifact.NewFile(data, false)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	id, err := store.StoreArtifact(ctx, artifact.NewDirectory(entries))
	if err != nil {
		return nil, err
	}
	ref := artifact.NewReferent(id)
	return &ref, nil
}

func checkinLocalLibraryPath(ctx context.Context, store storeclient.Store, dir string, triple hostsys.Triple) (*artifact.Referent, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil
	}
	built := map[string]artifact.Artifact{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		candidatePath := filepath.Join(dir, e.Name())
		analysis, err := AnalyzeFile(candidatePath, triple)
		if err != nil || analysis.Name == "" {
			continue
		}
		data, err := os.ReadFile(candidatePath)
		if err != nil {
			continue
		}
		built[analysis.Name] = artifact.NewFile(data, false)
	}
	if len(built) == 0 {
		return nil, nil
	}
	id, err := store.StoreArtifact(ctx, artifact.NewDirectory(built))
	if err != nil {
		return nil, err
	}
	ref := artifact.NewReferent(id)
	return &ref, nil
}
