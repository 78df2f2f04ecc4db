// Package launch renders the scripts and text files a server bundle needs to
// start: start.sh and start.bat, user_jvm_args.txt and eula.txt.
//
// Forge for Minecraft 1.17 and later is started through the argument files the
// installer generates; older versions run the forge jar directly. Both scripts
// run the bundled installer once when the server is not installed yet.
package launch

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/glorpus-work/mcbundle/pkg/errors"
	"github.com/glorpus-work/mcbundle/pkg/fsutil"
	"github.com/glorpus-work/mcbundle/pkg/manifest"
	"github.com/glorpus-work/mcbundle/pkg/platform"
	"github.com/glorpus-work/mcbundle/pkg/source"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// ArgsFileSince is the first Minecraft version whose Forge installer produces
// unix_args.txt / win_args.txt.
const ArgsFileSince = "1.17"

var memoryPattern = regexp.MustCompile(`^[0-9]+[KkMmGg]?$`)

// Options describe the server to render launch files for.
type Options struct {
	PackName    string
	PackVersion string
	Loader      manifest.Loader
	JavaPath    string
	Memory      string
	JVMArgs     []string
	AcceptEULA  bool
	// Platform limits the start scripts to one system. Empty renders both.
	Platform string
}

// File is one rendered output, relative to the bundle root.
type File struct {
	Name string
	Mode os.FileMode
	Data []byte
}

type templateData struct {
	Options
	MinecraftVersion string
	ArgsFile         bool
	Installer        string
	InstalledMarker  string
	ServerJar        string
	UnixArgsFile     string
	WinArgsFile      string
}

var outputs = []struct {
	name     string
	template string
	mode     os.FileMode
	systems  []string // nil for every system
}{
	{"start.sh", "start.sh.tmpl", fsutil.FileModeExec, []string{platform.Linux, platform.MacOS}},
	{"start.bat", "start.bat.tmpl", fsutil.FileModeDefault, []string{platform.Windows}},
	{"user_jvm_args.txt", "user_jvm_args.txt.tmpl", fsutil.FileModeDefault, nil},
	{"eula.txt", "eula.txt.tmpl", fsutil.FileModeDefault, nil},
}

var templates = template.Must(template.New("launch").Funcs(template.FuncMap{
	"shquote":  shellQuote,
	"batquote": batchQuote,
	"winpath":  func(p string) string { return strings.ReplaceAll(p, "/", `\`) },
}).ParseFS(templateFS, "templates/*.tmpl"))

// Render produces the launch files for opts.
func Render(opts Options) ([]File, error) {
	if opts.JavaPath == "" {
		opts.JavaPath = "java"
	}
	if !memoryPattern.MatchString(opts.Memory) {
		return nil, errors.Wrapf(errors.ErrConfigValue, "server memory %q, expected e.g. 4G or 4096M", opts.Memory)
	}
	if !platform.IsValid(opts.Platform) {
		return nil, errors.Wrapf(errors.ErrConfigValue, "server platform %q, expected one of %s",
			opts.Platform, strings.Join(platform.Valid(), ", "))
	}
	if opts.Loader.Kind != manifest.LoaderForge {
		return nil, errors.ErrUnsupportedLoaderWithName(opts.Loader.String())
	}

	data := newTemplateData(opts)

	files := make([]File, 0, len(outputs))
	for _, out := range outputs {
		if out.systems != nil && !platform.Matches(opts.Platform, out.systems...) {
			continue
		}
		var buf bytes.Buffer
		if err := templates.ExecuteTemplate(&buf, out.template, data); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", out.name, err)
		}
		content := buf.Bytes()
		if strings.HasSuffix(out.name, ".bat") {
			content = bytes.ReplaceAll(content, []byte("\n"), []byte("\r\n"))
		}
		files = append(files, File{Name: out.name, Mode: out.mode, Data: content})
	}
	return files, nil
}

// Write renders the launch files into dir.
func Write(dir string, opts Options) ([]File, error) {
	files, err := Render(opts)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		target, err := fsutil.SafeJoin(dir, f.Name)
		if err != nil {
			return nil, err
		}
		if err := fsutil.WriteFileAtomic(target, f.Data, f.Mode); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// UsesArgsFile reports whether loader is started through argument files.
func UsesArgsFile(loader manifest.Loader) bool {
	return loader.AtLeast(ArgsFileSince)
}

// ServerJarSink is where the vanilla server jar must be placed for the
// installer of loader to pick it up.
func ServerJarSink(loader manifest.Loader) string {
	if UsesArgsFile(loader) {
		return source.LibraryServerJarSink(loader.MinecraftVersion)
	}
	return source.DefaultServerJarSink(loader.MinecraftVersion)
}

func newTemplateData(opts Options) templateData {
	full := opts.Loader.FullVersion()
	argsDir := "libraries/net/minecraftforge/forge/" + full

	jvmArgs := append([]string{"-Xmx" + opts.Memory}, opts.JVMArgs...)
	opts.JVMArgs = jvmArgs

	data := templateData{
		Options:          opts,
		MinecraftVersion: opts.Loader.MinecraftVersion,
		ArgsFile:         UsesArgsFile(opts.Loader),
		Installer:        source.InstallerSink(opts.Loader),
		UnixArgsFile:     argsDir + "/unix_args.txt",
		WinArgsFile:      argsDir + "/win_args.txt",
		ServerJar:        "forge-" + full + ".jar",
	}
	if data.ArgsFile {
		data.InstalledMarker = data.UnixArgsFile
	} else {
		data.InstalledMarker = data.ServerJar
	}
	return data
}

// shellQuote quotes s for POSIX sh when it contains anything but safe characters.
func shellQuote(s string) string {
	if s != "" && strings.Trim(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_.,:/@+=%") == "" {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func batchQuote(s string) string {
	if strings.ContainsAny(s, " \t&|<>^") {
		return `"` + s + `"`
	}
	return s
}
