package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/docreflect/internal/config"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const testConfig = `class_finders: [psr4]
psr4:
  - prefix: 'App\'
    paths: [src]
`

func createSampleProject(t *testing.T, cfg string) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, config.FileName, cfg)
	writeTestFile(t, dir, "src/Entity/User.php", `<?php
namespace App\Entity;

/**
 * @property-read int $id
 */
class User
{
    /** @var string */
    public $name;

    /** @var Role */
    public $role;

    /** @var string */
    private $password;

    /** @return Role */
    public function getRole() {}
}
`)
	writeTestFile(t, dir, "src/Entity/Role.php", `<?php
namespace App\Entity;

class Role
{
    /** @var string */
    public $label;
}
`)
	return dir
}

func runOK(t *testing.T, args ...string) (string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	if err := run(args, &stdout, &stderr); err != nil {
		t.Fatalf("run %v: %v\nstderr: %s", args, err, stderr.String())
	}
	return stdout.String(), stderr.String()
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	out, _ := runOK(t, "version")
	if out != "docreflect dev\n" {
		t.Errorf("got %q", out)
	}
	out, _ = runOK(t, "--version")
	if out != "docreflect dev\n" {
		t.Errorf("--version got %q", out)
	}
}

func TestRunBadFormat(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-C", dir, "-f", "xml", "inspect", `App\Entity\User`}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestRunBadConfig(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig+"tag_class_map:\n  - tag: psalm-var\n    record: nope\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{"-C", dir, "inspect", `App\Entity\User`}, &stdout, &stderr)
	if !config.IsConfigError(err) {
		t.Errorf("expected a configuration error, got %v", err)
	}
}

func TestRunInspect(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)

	out, _ := runOK(t, "-C", dir, "inspect", `App\Entity\User`)
	for _, want := range []string{
		`class: "App\\Entity\\User"`,
		"found: true",
		"file: ",
		"properties[4]{name,visibility,static,access,type}:",
		`  name,public,"false",rw,string`,
		`  password,private,"false","-",string`,
		`  id,public,"false",r,int`,
		"methods[1]{name,visibility,static,type}:",
		"property-read,int $id",
		"  $name,var,string",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRunInspectJSON(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)

	out, _ := runOK(t, "-C", dir, "-f", "json", "inspect", `\App\Entity\User`)

	var v classView
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out)
	}
	if !v.Found || v.Name != `App\Entity\User` {
		t.Fatalf("got name %q found %v", v.Name, v.Found)
	}

	var names []string
	for _, p := range v.Properties {
		names = append(names, p.Name)
	}
	if got := strings.Join(names, ","); got != "name,role,password,id" {
		t.Errorf("properties = %s", got)
	}
	id := v.Properties[3]
	if !id.Readable || id.Writable {
		t.Errorf("id readable=%v writable=%v, want read-only", id.Readable, id.Writable)
	}
	password := v.Properties[2]
	if password.Readable || password.Writable {
		t.Error("private property should be neither readable nor writable")
	}
	if len(v.Methods) != 1 || v.Methods[0].Name != "getRole" {
		t.Errorf("methods = %+v", v.Methods)
	}
	if !strings.HasSuffix(v.Methods[0].Type, `App\Entity\Role`) {
		t.Errorf("getRole type = %q", v.Methods[0].Type)
	}
}

func TestRunInspectYAML(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)

	out, _ := runOK(t, "-C", dir, "-f", "yaml", "inspect", `App\Entity\Role`)

	var v classView
	if err := yaml.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out)
	}
	if v.Name != `App\Entity\Role` || len(v.Properties) != 1 || v.Properties[0].Type != "string" {
		t.Errorf("got %+v", v)
	}
}

func TestRunInspectUnknownClass(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)

	out, errOut := runOK(t, "-C", dir, "--no-color", "inspect", `App\Entity\Missing`)
	if !strings.Contains(out, "found: false") {
		t.Errorf("expected found: false, got:\n%s", out)
	}
	if !strings.Contains(errOut, `Warning: class App\Entity\Missing not found`) {
		t.Errorf("expected warning, got stderr:\n%s", errOut)
	}
}

func TestRunProperty(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)

	out, _ := runOK(t, "-C", dir, "property", `App\Entity\User`, "$name", "--tag", "var")
	for _, want := range []string{
		"property: name",
		"visibility: public",
		"readable: true",
		"writable: true",
		"type: string",
		"tagged: string",
	} {
		if !strings.Contains(out, want+"\n") && !strings.HasSuffix(strings.TrimSpace(out), want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRunPropertyMissing(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-C", dir, "property", `App\Entity\User`, "nope"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "no property $nope") {
		t.Errorf("expected missing property error, got %v", err)
	}

	err = run([]string{"-C", dir, "property", `App\Entity\User`, "nme"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "did you mean $name?") {
		t.Errorf("expected suggestion, got %v", err)
	}
}

func TestRunScan(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)

	out, _ := runOK(t, "-C", dir, "scan")
	for _, want := range []string{
		"project: " + filepath.Base(dir),
		"classes[2]{name,file,rank}:",
		"src/Entity/User.php",
		"src/Entity/Role.php",
		"dependencies[1]{source,target,symbols}:",
		`  "App\\Entity\\User","App\\Entity\\Role",$role getRole()`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRunScanJSON(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)

	out, _ := runOK(t, "-C", dir, "-f", "json", "scan", "src")

	var v projectView
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out)
	}
	if len(v.Classes) != 2 {
		t.Fatalf("got %d classes", len(v.Classes))
	}
	// Role is referenced by User, so it ranks first.
	if v.Classes[0].Name != `App\Entity\Role` {
		t.Errorf("top class = %s", v.Classes[0].Name)
	}
	if len(v.Dependencies) != 1 {
		t.Fatalf("got %d dependencies", len(v.Dependencies))
	}
	d := v.Dependencies[0]
	if d.Source != `App\Entity\User` || d.Target != `App\Entity\Role` {
		t.Errorf("dependency = %+v", d)
	}
}

func TestRunScanTop(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)

	out, _ := runOK(t, "-C", dir, "scan", "-n", "1")
	if !strings.Contains(out, "classes[1]{name,file,rank}:") {
		t.Errorf("expected one class, got:\n%s", out)
	}
	if !strings.Contains(out, "dependencies[0]") {
		t.Errorf("expected no dependencies, got:\n%s", out)
	}
}

func TestRunScanFileFilter(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)

	out, _ := runOK(t, "-C", dir, "scan", "--file", "Role.php")
	if !strings.Contains(out, "classes[1]{name,file,rank}:") || !strings.Contains(out, "src/Entity/Role.php") {
		t.Errorf("expected only Role, got:\n%s", out)
	}
}

func TestRunScanExcludeTests(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)
	writeTestFile(t, dir, "tests/UserTest.php", "<?php\nclass UserTest {}\n")

	out, _ := runOK(t, "-C", dir, "scan")
	if !strings.Contains(out, "classes[3]") {
		t.Errorf("expected test class without --exclude-tests, got:\n%s", out)
	}
	out, _ = runOK(t, "-C", dir, "scan", "--exclude-tests")
	if !strings.Contains(out, "classes[2]") {
		t.Errorf("expected test class excluded, got:\n%s", out)
	}
}

func TestRunScanNoFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"-C", dir, "scan"}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "no PHP files") {
		t.Errorf("expected no files error, got %v", err)
	}
}

func TestRunExtract(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)
	input := filepath.Join(dir, "user.json")
	writeTestFile(t, dir, "user.json", `{"name": "Ada", "password": "secret", "id": 7}`)

	out, _ := runOK(t, "-C", dir, "-f", "json", "extract", `App\Entity\User`, input)

	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, out)
	}
	if got["name"] != "Ada" || got["id"] != float64(7) {
		t.Errorf("got %v", got)
	}
	if _, ok := got["role"]; !ok {
		t.Error("unset readable property should be extracted as null")
	}
	if _, ok := got["password"]; ok {
		t.Error("private property extracted")
	}
}

func TestRunHydrate(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)
	writeTestFile(t, dir, "data.json", `{"name": "Ada", "id": 7, "bogus": true}`)

	out, errOut := runOK(t, "-C", dir, "--no-color", "hydrate", `App\Entity\User`, filepath.Join(dir, "data.json"))
	if strings.TrimSpace(out) != `name: "Ada"` {
		t.Errorf("got:\n%s", out)
	}
	if !strings.Contains(errOut, "ignored keys: bogus, id") {
		t.Errorf("expected ignored keys warning, got:\n%s", errOut)
	}
}

func TestRunSQLiteCache(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig+"cache:\n  backend: sqlite\n")

	first, _ := runOK(t, "-C", dir, "inspect", `App\Entity\User`)
	if _, err := os.Stat(filepath.Join(dir, ".docreflect", "cache.db")); err != nil {
		t.Fatalf("cache not created: %v", err)
	}
	second, _ := runOK(t, "-C", dir, "inspect", `App\Entity\User`)
	if first != second {
		t.Errorf("cached output differs:\nfirst:\n%s\nsecond:\n%s", first, second)
	}

	_, errOut := runOK(t, "-C", dir, "cache", "clear")
	if !strings.Contains(errOut, "cleared sqlite cache") {
		t.Errorf("got stderr:\n%s", errOut)
	}
}

func TestRunCacheClearWithoutBackend(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig)

	_, errOut := runOK(t, "-C", dir, "--no-color", "cache", "clear")
	if !strings.Contains(errOut, "Warning: no cache backend configured") {
		t.Errorf("got stderr:\n%s", errOut)
	}
}

func TestRunCacheWarm(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t, testConfig+"cache:\n  backend: sqlite\n")

	_, errOut := runOK(t, "-C", dir, "cache", "warm")
	if !strings.Contains(errOut, "warmed 2 classes from 2 files") {
		t.Errorf("got stderr:\n%s", errOut)
	}
	if _, err := os.Stat(filepath.Join(dir, ".docreflect", "cache.db")); err != nil {
		t.Errorf("cache not created: %v", err)
	}
}
