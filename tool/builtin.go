package tool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/hupe1980/agencyhub/internal/util"
	"github.com/hupe1980/agencyhub/logging"
	"github.com/hupe1980/agencyhub/model"
)

// Names of the built-in tools as referenced by agent configurations.
const (
	BuildDirectoryTreeName   = "BuildDirectoryTree"
	PrintFileContentsName    = "PrintFileContents"
	PrintAllFilesInPathName  = "PrintAllFilesInPath"
	WriteAndSaveProgramName  = "WriteAndSaveProgram"
	SummarizeCodeName        = "SummarizeCode"
	GenerateProposalName     = "GenerateProposal"
	truncatedOutputNote      = "\n\n... (truncated output, please use a smaller directory or apply a filter)"
	defaultMaxOutput         = 20000
	summarizeCodeUserPrefix  = "Summarize the code of each file below.\n\n"
	generateProposalTemplate = "Write a project proposal for the following brief.\n\nBrief:\n{{.brief}}"
)

const summarizeCodeSystem = `Your main job is to handle programming code from SEVERAL FILES. Each file's content is shown within triple backticks and has a FILE PATH as a title. It's vital to KEEP the FILE PATHS.
Here's what to do:
1. ALWAYS KEEP the FILE PATHS for each file.
2. Start each file with a short SUMMARY of its content. Mention important points but don't repeat details found later.
3. KEEP important elements like non-trivial imports, function details, type hints, and key constants. Don't change these.
4. In functions or class methods, replace long code with a short SUMMARY in the docstrings, keeping the main logic.
5. Shorten and combine docstrings and comments into the function or method descriptions.
6. For classes, provide a brief SUMMARY in the docstrings, explaining the class's purpose and main logic.
7. Cut down long strings to keep things brief.
8. If there's a comment about "truncated output" at the end, KEEP it.

Your task is to create a concise version of the code, strictly keeping the FILE PATHS and structure, without extra comments or explanations.`

const generateProposalSystem = `You are a professional proposal writer. Given a short project brief, write a concise proposal with an overview, scope, milestones and a rough estimate. Use markdown headings.`

// BuiltinOptions configure the built-in tools.
type BuiltinOptions struct {
	// Root confines every file system access. Paths are interpreted relative to it.
	Root string
	// Model backs SummarizeCode and GenerateProposal. When nil those tools are omitted.
	Model model.Model
	// MaxOutput caps tool output in bytes.
	MaxOutput int
	Logger    logging.Logger
}

// Builtins returns the built-in tools.
func Builtins(optFns ...func(o *BuiltinOptions)) []Tool {
	opts := BuiltinOptions{Root: ".", MaxOutput: defaultMaxOutput, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	fsys := &sandbox{root: opts.Root, maxOutput: opts.MaxOutput}
	withLogger := func(o *FunctionOptions) { o.Logger = opts.Logger }

	pathParams := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"start_path": map[string]any{"type": "string", "description": "Directory or file to start from, relative to the workspace. Defaults to the workspace root."},
			"file_extensions": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "File extensions to include, for example [\".go\", \".md\"]. Empty includes all files.",
			},
			"pattern": map[string]any{"type": "string", "description": "Optional glob such as **/*_test.go."},
		},
	}

	tools := []Tool{
		NewFunctionTool(BuildDirectoryTreeName,
			"Print the directory tree of the workspace, optionally filtered by file extension. Directory traversal outside the workspace is not allowed.",
			pathParams,
			func(_ context.Context, args map[string]any) (any, error) {
				return fsys.tree(selectionFrom(args))
			}, withLogger),
		NewFunctionTool(PrintFileContentsName,
			"Print the contents of a single file.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"file_path": map[string]any{"type": "string", "description": "File to print, relative to the workspace."},
				},
				"required": []string{"file_path"},
			},
			func(_ context.Context, args map[string]any) (any, error) {
				return fsys.readFile(stringArg(args, "file_path", ""))
			}, withLogger),
		NewFunctionTool(PrintAllFilesInPathName,
			"Print the contents of every file in a directory, each titled by its path.",
			pathParams,
			func(_ context.Context, args map[string]any) (any, error) {
				return fsys.printAll(selectionFrom(args))
			}, withLogger),
		NewFunctionTool(WriteAndSaveProgramName,
			"Write one or more files to the workspace. Parent directories are created.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"files": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"file_name": map[string]any{"type": "string"},
								"body":      map[string]any{"type": "string"},
							},
							"required": []string{"file_name", "body"},
						},
					},
				},
				"required": []string{"files"},
			},
			func(_ context.Context, args map[string]any) (any, error) {
				return fsys.writeFiles(args["files"])
			}, withLogger),
	}

	if opts.Model != nil {
		m := opts.Model
		tools = append(tools,
			NewFunctionTool(SummarizeCodeName,
				"Summarize the code found under a path. Directory traversal outside the workspace is not allowed.",
				pathParams,
				func(ctx context.Context, args map[string]any) (any, error) {
					code, err := fsys.printAll(selectionFrom(args))
					if err != nil {
						return nil, err
					}
					out, err := model.Complete(ctx, m, summarizeCodeSystem, summarizeCodeUserPrefix+code)
					if err != nil {
						return nil, err
					}
					return fsys.truncate(out), nil
				}, withLogger),
			NewFunctionTool(GenerateProposalName,
				"Generate a project proposal from a short project brief.",
				map[string]any{
					"type": "object",
					"properties": map[string]any{
						"project_brief": map[string]any{"type": "string", "description": "What the client wants built."},
					},
					"required": []string{"project_brief"},
				},
				func(ctx context.Context, args map[string]any) (any, error) {
					prompt, err := util.RenderPrompt(generateProposalTemplate, map[string]any{"brief": stringArg(args, "project_brief", "")})
					if err != nil {
						return nil, err
					}
					return model.Complete(ctx, m, generateProposalSystem, prompt)
				}, withLogger),
		)
	}

	return tools
}

// selection picks files below start.
type selection struct {
	start      string
	extensions []string
	pattern    string
}

func selectionFrom(args map[string]any) selection {
	return selection{
		start:      stringArg(args, "start_path", "."),
		extensions: stringSliceArg(args, "file_extensions"),
		pattern:    stringArg(args, "pattern", ""),
	}
}

func (s selection) includes(rel string) bool {
	if len(s.extensions) > 0 {
		ext := filepath.Ext(rel)
		found := false
		for _, e := range s.extensions {
			if !strings.HasPrefix(e, ".") {
				e = "." + e
			}
			if strings.EqualFold(e, ext) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if s.pattern != "" {
		ok, err := doublestar.PathMatch(s.pattern, rel)
		return err == nil && ok
	}
	return true
}

type sandbox struct {
	root      string
	maxOutput int
}

func (s *sandbox) resolve(p string) (string, error) {
	if p == "" {
		p = "."
	}
	if filepath.IsAbs(p) {
		return "", NewToolError("sandbox", fmt.Sprintf("absolute path %q is not allowed", p), CodeForbidden)
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	full := filepath.Join(root, p)
	if !within(root, full) {
		return "", escapes(p)
	}
	realRoot, err := evalExisting(root)
	if err != nil {
		return "", err
	}
	realFull, err := evalExisting(full)
	if err != nil {
		return "", err
	}
	if !within(realRoot, realFull) {
		return "", escapes(p)
	}
	return full, nil
}

func escapes(p string) error {
	return NewToolError("sandbox", fmt.Sprintf("path %q escapes the workspace", p), CodeForbidden)
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// evalExisting resolves symlinks in the longest existing prefix of p and
// appends the missing remainder unchanged.
func evalExisting(p string) (string, error) {
	var rest []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

func (s *sandbox) truncate(out string) string {
	if s.maxOutput > 0 && len(out) > s.maxOutput {
		return util.Truncate(out, s.maxOutput) + truncatedOutputNote
	}
	return out
}

func (s *sandbox) readFile(p string) (string, error) {
	full, err := s.resolve(p)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return s.truncate(string(data)), nil
}

// walk visits the selected regular files in lexical order, skipping hidden entries.
func (s *sandbox) walk(sel selection, fn func(rel, full string, d fs.DirEntry) error) (string, error) {
	start, err := s.resolve(sel.start)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(start); err != nil {
		return "", err
	}
	return start, filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if path != start && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(start, path)
		if err != nil {
			return err
		}
		if !d.IsDir() && !sel.includes(rel) {
			return nil
		}
		return fn(rel, path, d)
	})
}

func (s *sandbox) tree(sel selection) (string, error) {
	var b strings.Builder
	start, err := s.walk(sel, func(rel, _ string, d fs.DirEntry) error {
		if rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))
		b.WriteString(strings.Repeat("    ", depth))
		b.WriteString(d.Name())
		if d.IsDir() {
			b.WriteString("/")
		}
		b.WriteString("\n")
		return nil
	})
	if err != nil {
		return "", err
	}
	return s.truncate(filepath.Base(start) + "/\n" + b.String()), nil
}

func (s *sandbox) printAll(sel selection) (string, error) {
	var b strings.Builder
	_, err := s.walk(sel, func(rel, full string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "%s:\n```\n%s\n```\n\n", filepath.ToSlash(filepath.Join(sel.start, rel)), data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return s.truncate(b.String()), nil
}

func (s *sandbox) writeFiles(raw any) (string, error) {
	items, ok := raw.([]any)
	if !ok {
		return "", NewToolError(WriteAndSaveProgramName, "files must be a list", CodeValidation)
	}
	written := make([]string, 0, len(items))
	for _, item := range items {
		f, ok := item.(map[string]any)
		if !ok {
			return "", NewToolError(WriteAndSaveProgramName, "each file must be an object", CodeValidation)
		}
		name := stringArg(f, "file_name", "")
		if name == "" {
			return "", NewToolError(WriteAndSaveProgramName, "file_name is required", CodeValidation)
		}
		full, err := s.resolve(name)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(full, []byte(stringArg(f, "body", "")), 0o644); err != nil {
			return "", err
		}
		written = append(written, filepath.ToSlash(name))
	}
	sort.Strings(written)
	return "File(s) written successfully: " + strings.Join(written, ", "), nil
}

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func stringSliceArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
