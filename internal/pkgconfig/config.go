// Package pkgconfig decodes the declarative build and shell files that
// drive yafpm-build and yafpm-shell, in either TOML or JSON, and resolves
// each resource's URL against the config file's own location.
package pkgconfig

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/iohannesarnold/yafpm/internal/pkg"
	"github.com/iohannesarnold/yafpm/internal/pkghash"
	"github.com/iohannesarnold/yafpm/internal/resource"
)

// Format selects which encoding to decode a config file with.
type Format int

const (
	// FormatUnknown means the format could not be inferred and must be
	// specified explicitly.
	FormatUnknown Format = iota
	FormatTOML
	FormatJSON
)

// FormatFromExtension infers a Format from a file's extension ("toml" or
// "json", with or without a leading dot). Returns FormatUnknown for
// anything else.
func FormatFromExtension(ext string) Format {
	switch ext {
	case ".toml", "toml":
		return FormatTOML
	case ".json", "json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// rawPackageRef is the wire shape of a dependency entry: enough to
// reconstruct a pkg.Package for mounting and ident computation.
type rawPackageRef struct {
	Name    string `toml:"name" json:"name"`
	Version string `toml:"version" json:"version"`
	Hash    string `toml:"hash" json:"hash"`
}

func (r rawPackageRef) toPackage() (pkg.Package, error) {
	if r.Name == "" {
		return pkg.Package{}, fmt.Errorf("pkgconfig: dependency missing name")
	}
	if _, err := semver.NewVersion(r.Version); err != nil {
		return pkg.Package{}, fmt.Errorf("pkgconfig: dependency %q: invalid version %q: %w", r.Name, r.Version, err)
	}
	h, err := pkghash.ParseHash(r.Hash)
	if err != nil {
		return pkg.Package{}, fmt.Errorf("pkgconfig: dependency %q: %w", r.Name, err)
	}
	return pkg.Package{Name: r.Name, Version: r.Version, Hash: h}, nil
}

// rawResource is the wire shape of a resource entry; URL is resolved
// against the config file's base URL before being turned into a
// resource.Resource.
type rawResource struct {
	Name string `toml:"name" json:"name"`
	Hash string `toml:"hash" json:"hash"`
	URL  string `toml:"url" json:"url"`
}

func (r rawResource) toResource(baseURL *url.URL) (resource.Resource, error) {
	h, err := pkghash.ParseHash(r.Hash)
	if err != nil {
		return resource.Resource{}, fmt.Errorf("pkgconfig: resource %q: %w", r.Name, err)
	}
	ref, err := url.Parse(r.URL)
	if err != nil {
		return resource.Resource{}, fmt.Errorf("pkgconfig: resource %q: invalid url %q: %w", r.Name, r.URL, err)
	}
	resolved := ref
	if baseURL != nil {
		resolved = baseURL.ResolveReference(ref)
	}
	return resource.Resource{Name: r.Name, Hash: h, URL: resolved}, nil
}

// rawBuildFile is the wire shape of a build declaration, supporting both
// the primary field names and their aliases.
type rawBuildFile struct {
	Name              string            `toml:"name" json:"name"`
	PackageName       string            `toml:"package_name" json:"package_name"`
	Version           string            `toml:"version" json:"version"`
	PackageVersion    string            `toml:"package_version" json:"package_version"`
	Hash              string            `toml:"hash" json:"hash"`
	Resources         []rawResource     `toml:"resources" json:"resources"`
	Dependencies      []rawPackageRef   `toml:"dependencies" json:"dependencies"`
	BuildDependencies []rawPackageRef   `toml:"build_dependencies" json:"build_dependencies"`
	BuildCommand      string            `toml:"build_command" json:"build_command"`
	BuildCommandArgs  []string          `toml:"build_command_args" json:"build_command_args"`
	BuildEnvVars      map[string]string `toml:"build_env_vars" json:"build_env_vars"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// BuildDecl is the decoded, resolved form of a build file, ready to drive
// internal/buildctx.
type BuildDecl struct {
	Pkg               pkg.Package
	Resources         []resource.Resource
	BuildDependencies []pkg.Package
	BuildCommand      string
	BuildCommandArgs  []string
	BuildEnvVars      map[string]string
}

// DecodeBuild parses data as a build file in the given format, resolving
// every resource URL against baseURL.
func DecodeBuild(data []byte, format Format, baseURL *url.URL) (*BuildDecl, error) {
	var raw rawBuildFile
	if err := unmarshal(data, format, &raw); err != nil {
		return nil, err
	}

	name := firstNonEmpty(raw.Name, raw.PackageName)
	version := firstNonEmpty(raw.Version, raw.PackageVersion)
	if name == "" {
		return nil, fmt.Errorf("pkgconfig: missing package name")
	}
	if _, err := semver.NewVersion(version); err != nil {
		return nil, fmt.Errorf("pkgconfig: invalid package version %q: %w", version, err)
	}
	hash, err := pkghash.ParseHash(raw.Hash)
	if err != nil {
		return nil, fmt.Errorf("pkgconfig: package %q: %w", name, err)
	}
	if raw.BuildCommand == "" {
		return nil, fmt.Errorf("pkgconfig: missing build_command")
	}

	deps, err := toPackages(raw.Dependencies)
	if err != nil {
		return nil, err
	}
	buildDeps, err := toPackages(raw.BuildDependencies)
	if err != nil {
		return nil, err
	}
	resources, err := toResources(raw.Resources, baseURL)
	if err != nil {
		return nil, err
	}

	return &BuildDecl{
		Pkg:               pkg.Package{Name: name, Version: version, Hash: hash, Deps: deps},
		Resources:         resources,
		BuildDependencies: buildDeps,
		BuildCommand:      raw.BuildCommand,
		BuildCommandArgs:  raw.BuildCommandArgs,
		BuildEnvVars:      raw.BuildEnvVars,
	}, nil
}

// rawShellFile is the wire shape of a shell declaration.
type rawShellFile struct {
	Resources         []rawResource   `toml:"resources" json:"resources"`
	ShellDependencies []rawPackageRef `toml:"shell_dependencies" json:"shell_dependencies"`
	BuildDependencies []rawPackageRef `toml:"build_dependencies" json:"build_dependencies"`
	Dependencies      []rawPackageRef `toml:"dependencies" json:"dependencies"`
	ShellCommand      string          `toml:"shell_command" json:"shell_command"`
	BuildCommand      string          `toml:"build_command" json:"build_command"`
}

// ShellDecl is the decoded, resolved form of a shell file, ready to drive
// internal/shellctx.
type ShellDecl struct {
	Resources    []resource.Resource
	Dependencies []pkg.Package
	ShellCommand string
}

// DecodeShell parses data as a shell file in the given format, resolving
// every resource URL against baseURL.
func DecodeShell(data []byte, format Format, baseURL *url.URL) (*ShellDecl, error) {
	var raw rawShellFile
	if err := unmarshal(data, format, &raw); err != nil {
		return nil, err
	}

	shellCmd := firstNonEmpty(raw.ShellCommand, raw.BuildCommand)
	if shellCmd == "" {
		return nil, fmt.Errorf("pkgconfig: missing shell_command")
	}

	var depRefs []rawPackageRef
	switch {
	case len(raw.ShellDependencies) > 0:
		depRefs = raw.ShellDependencies
	case len(raw.BuildDependencies) > 0:
		depRefs = raw.BuildDependencies
	default:
		depRefs = raw.Dependencies
	}

	deps, err := toPackages(depRefs)
	if err != nil {
		return nil, err
	}
	resources, err := toResources(raw.Resources, baseURL)
	if err != nil {
		return nil, err
	}

	return &ShellDecl{
		Resources:    resources,
		Dependencies: deps,
		ShellCommand: shellCmd,
	}, nil
}

func toPackages(refs []rawPackageRef) ([]pkg.Package, error) {
	out := make([]pkg.Package, 0, len(refs))
	for _, r := range refs {
		p, err := r.toPackage()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func toResources(refs []rawResource, baseURL *url.URL) ([]resource.Resource, error) {
	out := make([]resource.Resource, 0, len(refs))
	for _, r := range refs {
		res, err := r.toResource(baseURL)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func unmarshal(data []byte, format Format, v any) error {
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("pkgconfig: decode toml: %w", err)
		}
		return nil
	case FormatJSON:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("pkgconfig: decode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("pkgconfig: unrecognized encoding. Try specifying --toml or --json")
	}
}
