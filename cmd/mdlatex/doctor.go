package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/alnah/go-mdlatex/internal/assets"
	"github.com/alnah/go-mdlatex/internal/config"
	"github.com/alnah/go-mdlatex/internal/fileutil"
	"github.com/alnah/go-mdlatex/internal/imagecache"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string      `json:"status"` // "ready", "warnings", "errors"
	Chrome   chromeInfo  `json:"chrome"`
	Surface  surfaceInfo `json:"surface"`
	Cache    cacheInfo   `json:"cache"`
	Env      envInfo     `json:"environment"`
	System   systemInfo  `json:"system"`
	Warnings []string    `json:"warnings,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
}

// chromeInfo holds Chrome/Chromium detection results.
type chromeInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

// surfaceInfo holds the rendering page check.
type surfaceInfo struct {
	Name       string `json:"name"`
	MathJaxURL string `json:"mathjax_url"`
	OK         bool   `json:"ok"`
}

// cacheInfo holds cache tier checks.
type cacheInfo struct {
	MemoryEntries  int    `json:"memory_entries"`
	DiskDir        string `json:"disk_dir,omitempty"`
	DiskWritable   bool   `json:"disk_writable,omitempty"`
	RedisAddr      string `json:"redis_addr,omitempty"`
	RedisReachable bool   `json:"redis_reachable,omitempty"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	NoSandbox     string `json:"rod_no_sandbox"`
	BrowserBin    string `json:"rod_browser_bin"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool `json:"temp_writable"`
}

// runDoctorCmd executes the doctor command and returns an exit code.
// Exit codes: 0 = OK (including warnings), 1 = errors found, 2 = bad flags.
func runDoctorCmd(args []string, env *Environment) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	jsonOutput := fs.Bool("json", false, "machine-readable output")
	configName := fs.StringP("config", "c", "", "config file name or path")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return ExitSuccess
		}
		return ExitUsage
	}

	result := runDoctor(*configName)

	if *jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == "errors" {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor performs all diagnostic checks.
func runDoctor(configName string) *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env: envInfo{
			OS:         runtime.GOOS,
			Arch:       runtime.GOARCH,
			NoSandbox:  os.Getenv("ROD_NO_SANDBOX"),
			BrowserBin: os.Getenv("ROD_BROWSER_BIN"),
		},
	}

	cfg, err := loadConfig(&commonFlags{config: configName}, &rendererFlags{})
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		cfg = config.DefaultConfig()
	}
	if cfg.Renderer.BrowserBin != "" {
		result.Env.BrowserBin = cfg.Renderer.BrowserBin
	}

	checkChrome(result)
	checkSurface(result, cfg)
	checkCache(result, cfg)
	checkEnvironment(result, cfg)
	checkSystem(result)

	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}

	return result
}

// checkChrome detects Chrome/Chromium installation.
func checkChrome(result *doctorResult) {
	chromePath := result.Env.BrowserBin

	if chromePath == "" {
		var found bool
		chromePath, found = launcher.LookPath()
		if !found {
			result.Errors = append(result.Errors,
				"Chrome/Chromium not found. Install Chrome or set ROD_BROWSER_BIN")
			return
		}
	}

	if _, err := os.Stat(chromePath); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Chrome not found at %s", chromePath))
		return
	}

	result.Chrome.Found = true
	result.Chrome.Path = chromePath

	cmd := exec.Command(chromePath, "--version")
	out, err := cmd.Output()
	if err == nil {
		result.Chrome.Version = strings.TrimSpace(string(out))
	} else {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Could not get Chrome version: %v", err))
	}

	result.Chrome.Sandbox = result.Env.NoSandbox != "1"
}

// checkSurface renders the configured surface page template.
func checkSurface(result *doctorResult, cfg *config.Config) {
	name := cfg.Renderer.Surface
	if name == "" {
		name = assets.DefaultSurfaceName
	}
	result.Surface.Name = name
	result.Surface.MathJaxURL = cfg.Renderer.MathJaxURL
	if result.Surface.MathJaxURL == "" {
		result.Surface.MathJaxURL = assets.DefaultMathJaxURL
	}

	resolver, err := assets.NewAssetResolver(cfg.Assets.BasePath)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Asset path: %v", err))
		return
	}
	src, err := resolver.LoadSurface(name)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Surface page: %v", err))
		return
	}
	if _, err := assets.RenderSurfacePage(src, assets.SurfacePage{MathJaxURL: cfg.Renderer.MathJaxURL}); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Surface page: %v", err))
		return
	}
	result.Surface.OK = true

	if fileutil.IsURL(result.Surface.MathJaxURL) {
		result.Warnings = append(result.Warnings,
			"MathJax is loaded from the network; set renderer.mathjaxURL to a local copy for offline use")
	}
}

// checkCache verifies the configured persistent tiers.
func checkCache(result *doctorResult, cfg *config.Config) {
	result.Cache.MemoryEntries = cfg.Cache.MemoryEntries

	if dir := cfg.Cache.DiskDir; dir != "" {
		result.Cache.DiskDir = dir
		if _, err := imagecache.NewDisk(dir, nil); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Disk cache: %v", err))
		} else if err := probeWritable(dir); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Disk cache not writable: %s", dir))
		} else {
			result.Cache.DiskWritable = true
		}
	}

	if cfg.Cache.Redis.Enabled {
		rc := imagecache.DefaultRedisConfig()
		rc.Addr = cfg.Cache.Redis.Addr
		rc.Password = cfg.Cache.Redis.Password
		rc.DB = cfg.Cache.Redis.DB
		result.Cache.RedisAddr = rc.Addr

		r, err := imagecache.NewRedis(rc, zap.NewNop())
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Redis cache: %v", err))
			return
		}
		_ = r.Close()
		result.Cache.RedisReachable = true
	}
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult, cfg *config.Config) {
	result.Env.Container, result.Env.ContainerHint = isContainer()

	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}

	if (result.Env.Container || result.Env.CI) && result.Env.NoSandbox != "1" && !cfg.Renderer.NoSandbox {
		result.Warnings = append(result.Warnings,
			"Container/CI detected but sandbox not disabled. Set ROD_NO_SANDBOX=1 or renderer.noSandbox")
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	if os.Getenv("MDLATEX_CONTAINER") == "1" {
		return true, "MDLATEX_CONTAINER=1"
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "/.dockerenv"
	}
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies system requirements.
func checkSystem(result *doctorResult) {
	tmpDir := os.TempDir()
	if err := probeWritable(tmpDir); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", tmpDir))
	} else {
		result.System.TempWritable = true
	}
}

// probeWritable writes and removes a small file in dir.
func probeWritable(dir string) error {
	path := filepath.Join(dir, ".mdlatex-doctor-test")
	if err := os.WriteFile(path, []byte("test"), 0600); err != nil {
		return err
	}
	return os.Remove(path)
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "mdlatex doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Chrome/Chromium")
	if r.Chrome.Found {
		fmt.Fprintf(w, "  [OK] Found at %s\n", r.Chrome.Path)
		if r.Chrome.Version != "" {
			fmt.Fprintf(w, "  [OK] Version: %s\n", r.Chrome.Version)
		}
		if r.Chrome.Sandbox {
			fmt.Fprintln(w, "  [OK] Sandbox: enabled")
		} else {
			fmt.Fprintln(w, "  [OK] Sandbox: disabled (ROD_NO_SANDBOX=1)")
		}
	} else {
		fmt.Fprintln(w, "  [ERROR] Not found")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Surface")
	if r.Surface.OK {
		fmt.Fprintf(w, "  [OK] Page: %s\n", r.Surface.Name)
	} else {
		fmt.Fprintf(w, "  [ERROR] Page: %s\n", r.Surface.Name)
	}
	fmt.Fprintf(w, "  [OK] MathJax: %s\n", r.Surface.MathJaxURL)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Cache")
	fmt.Fprintf(w, "  [OK] Memory: %d entries\n", r.Cache.MemoryEntries)
	if r.Cache.DiskDir != "" {
		if r.Cache.DiskWritable {
			fmt.Fprintf(w, "  [OK] Disk: %s\n", r.Cache.DiskDir)
		} else {
			fmt.Fprintf(w, "  [ERROR] Disk: %s\n", r.Cache.DiskDir)
		}
	}
	if r.Cache.RedisAddr != "" {
		if r.Cache.RedisReachable {
			fmt.Fprintf(w, "  [OK] Redis: %s\n", r.Cache.RedisAddr)
		} else {
			fmt.Fprintf(w, "  [ERROR] Redis: %s unreachable\n", r.Cache.RedisAddr)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Temp directory: not writable")
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready to render")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}
