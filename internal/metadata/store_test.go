package metadata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/phobologic/docreflect/internal/docblock"
	"github.com/phobologic/docreflect/internal/finder"
	"github.com/phobologic/docreflect/internal/model"
	"github.com/phobologic/docreflect/internal/structure"
	"github.com/phobologic/docreflect/internal/tagreader"
)

// writeTree writes files below a temporary root mapped to the App\ prefix.
func writeTree(t *testing.T, files map[string]string) (string, *structure.Reflector) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root, structure.New(finder.NewPSR4(map[string][]string{`App\`: {root}}), nil)
}

const userClass = `<?php
namespace App\Entity;

abstract class User
{
    /**
     * @var string
     * @deprecated use email
     * @deprecated really
     */
    public $login;

    /** @var string */
    protected $password;

    #[\Doctrine\ORM\Mapping\Column]
    public $email;

    public function getLogin() {}
    protected function hash() {}
    private function salt() {}
}
`

const userProxyClass = `<?php
namespace App\Proxy;

use App\Entity\User;

class UserProxy extends User implements \Doctrine\Persistence\Proxy {}
`

var storeFiles = map[string]string{
	"Model/Article.php":   magicClass,
	"Entity/Account.php":  annotatedClass,
	"Entity/User.php":     userClass,
	"Proxy/UserProxy.php": userProxyClass,
}

// countingTags counts class-level tag extractions.
type countingTags struct {
	TagSource
	classes atomic.Int32
}

func (c *countingTags) Annotations(target any) ([]docblock.Tag, error) {
	if _, ok := target.(*model.ClassInfo); ok {
		c.classes.Add(1)
	}
	return c.TagSource.Annotations(target)
}

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	_, r := writeTree(t, storeFiles)
	return New(r, tagreader.NewReader(nil), opts...)
}

func TestStoreUnknownClass(t *testing.T) {
	t.Parallel()

	s := newStore(t)

	if s.IsClassReflected(`App\Missing`) {
		t.Error("missing class reported as reflected")
	}
	if s.IsPropertyPublic(`App\Missing`, "x") || s.HasMethod(`App\Missing`, "x") {
		t.Error("missing class has members")
	}
	if got := s.PropertyType(`App\Missing`, "x"); got != "" {
		t.Errorf("type = %q", got)
	}
	meta, err := s.ClassMetadata(`\App\Missing`)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Found || !meta.Built {
		t.Errorf("meta = %+v", meta)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want one cached record", s.Len())
	}
}

func TestStoreClassIdentity(t *testing.T) {
	t.Parallel()

	_, r := writeTree(t, storeFiles)
	tags := &countingTags{TagSource: tagreader.NewReader(nil)}
	s := New(r, tags)

	for _, name := range []string{`\App\Entity\User`, `App\Entity\User`, `app\entity\user`, `\APP\ENTITY\USER`} {
		if !s.IsClassReflected(name) {
			t.Fatalf("%s not reflected", name)
		}
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want every spelling to share a record", s.Len())
	}
	if n := tags.classes.Load(); n != 1 {
		t.Errorf("built %d times, want 1", n)
	}
	if meta, _ := s.ClassMetadata(`app\entity\user`); meta.Name != `App\Entity\User` {
		t.Errorf("name = %q, want the declared spelling", meta.Name)
	}
}

var inheritanceFiles = map[string]string{
	"Model/Base.php": `<?php
namespace App\Model;

abstract class Base
{
    use Timestamps;

    /** @var int */
    public $id;

    private $version;

    public function getId() {}
}
`,
	"Model/Timestamps.php": `<?php
namespace App\Model;

trait Timestamps
{
    /** @var \DateTimeImmutable */
    protected $createdAt;

    public function touch() {}
}
`,
	"Model/Child.php": `<?php
namespace App\Model;

/**
 * @property-read string $slug
 */
class Child extends Base
{
    /** @var string */
    public $name;
}
`,
	"Model/Point.php": `<?php
namespace App\Model;

class Point
{
    public function __construct(public int $x, private int $y) {}
}
`,
}

func TestStoreInheritedMembers(t *testing.T) {
	t.Parallel()

	_, r := writeTree(t, inheritanceFiles)
	s := New(r, tagreader.NewReader(nil))
	const child = `App\Model\Child`

	if got := s.ClassPropertyNames(child); !reflect.DeepEqual(got, []string{"name", "id", "createdAt", "slug"}) {
		t.Errorf("ClassPropertyNames = %v", got)
	}
	if !s.IsPropertyReadable(child, "id") || !s.IsPropertyWritable(child, "id") {
		t.Error("inherited public id not readable and writable")
	}
	if got := s.PropertyType(child, "id"); got != "int" {
		t.Errorf("inherited id type = %q", got)
	}
	if !s.HasMethod(child, "getId") || !s.IsMethodPublic(child, "getId") {
		t.Error("inherited getId missing")
	}
	if s.IsPropertyPublic(child, "version") {
		t.Error("private parent property inherited")
	}

	// Trait members reach the parent and, when not private, the child.
	if got := s.PropertyType(child, "createdAt"); got != `\DateTimeImmutable` {
		t.Errorf("trait property type = %q", got)
	}
	if s.IsPropertyReadable(child, "createdAt") {
		t.Error("protected trait property readable")
	}
	if !s.HasMethod(`App\Model\Base`, "touch") || !s.HasMethod(child, "touch") {
		t.Error("trait method missing")
	}

	meta, err := s.ClassMetadata(child)
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Sources) != 2 {
		t.Errorf("sources = %v", meta.Sources)
	}
}

func TestStorePromotedProperties(t *testing.T) {
	t.Parallel()

	_, r := writeTree(t, inheritanceFiles)
	s := New(r, tagreader.NewReader(nil))
	const point = `App\Model\Point`

	if got := s.ClassPropertyNames(point); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("ClassPropertyNames = %v", got)
	}
	if !s.IsPropertyWritable(point, "x") || !s.IsPropertyPublic(point, "x") {
		t.Error("promoted public x not writable")
	}
	if !s.IsPropertyPrivate(point, "y") || s.IsPropertyReadable(point, "y") {
		t.Error("promoted private y misreported")
	}
}

func TestStorePersisterParentChange(t *testing.T) {
	t.Parallel()

	root, r := writeTree(t, inheritanceFiles)
	p := &memPersister{}
	if !New(r, tagreader.NewReader(nil), WithPersister(p)).IsPropertyPublic(`App\Model\Child`, "id") {
		t.Fatal("id not public")
	}

	path := filepath.Join(root, "Model/Base.php")
	src, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, append(src, "\n// edited\n"...), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	tags := &countingTags{TagSource: tagreader.NewReader(nil)}
	if !New(r, tags, WithPersister(p)).IsClassReflected(`App\Model\Child`) {
		t.Fatal("Child not reflected")
	}
	if n := tags.classes.Load(); n != 1 {
		t.Errorf("record rebuilt %d times after its parent changed, want 1", n)
	}
}

func TestStorePropertyQueries(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	const user = `App\Entity\User`

	tests := []struct {
		name  string
		query func(class, prop string) bool
		prop  string
		want  bool
	}{
		{"public", s.IsPropertyPublic, "login", true},
		{"public protected", s.IsPropertyPublic, "password", false},
		{"private protected", s.IsPropertyPrivate, "password", false},
		{"static", s.IsPropertyStatic, "login", false},
		{"readable", s.IsPropertyReadable, "login", true},
		{"writable", s.IsPropertyWritable, "login", true},
		{"readable protected", s.IsPropertyReadable, "password", false},
		{"writable missing", s.IsPropertyWritable, "nope", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query(user, tt.prop); got != tt.want {
				t.Errorf("%s(%s) = %v, want %v", tt.name, tt.prop, got, tt.want)
			}
		})
	}

	if got := s.PropertyType(user, "login"); got != "string" {
		t.Errorf("login type = %q", got)
	}
	if got := s.PropertyTagValues(user, "login", "@deprecated"); !reflect.DeepEqual(got, []string{"use email", "really"}) {
		t.Errorf("tag values = %v", got)
	}
	if !s.IsPropertyTaggedWith(user, "login", "var") || s.IsPropertyTaggedWith(user, "email", "var") {
		t.Error("IsPropertyTaggedWith")
	}
	if !s.IsPropertyAnnotatedWith(user, "email", `\Doctrine\ORM\Mapping\Column`) {
		t.Error("email not annotated with Column")
	}
	if got := s.PropertyAnnotations(user, "login", "deprecated"); len(got) != 2 {
		t.Errorf("deprecated annotations = %v", got)
	}
	if got := s.PropertyAnnotations(user, "login", ""); len(got) != 3 {
		t.Errorf("all annotations = %v", got)
	}
	if a, ok := s.PropertyAnnotation(user, "login", "var"); !ok || a.(*docblock.VarTag).Type != "string" {
		t.Errorf("PropertyAnnotation = %v, %v", a, ok)
	}
	if got := s.PropertyNamesByAnnotation(user, `Doctrine\ORM\Mapping\Column`); !reflect.DeepEqual(got, []string{"email"}) {
		t.Errorf("names by annotation = %v", got)
	}
}

func TestStoreVirtualPropertyQueries(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	const article = `App\Model\Article`

	if !s.IsPropertyReadable(article, "id") || s.IsPropertyWritable(article, "id") {
		t.Error("id should be read-only")
	}
	if s.IsPropertyReadable(article, "secret") || !s.IsPropertyWritable(article, "secret") {
		t.Error("secret should be write-only")
	}
	if s.IsPropertyStatic(article, "id") {
		t.Error("virtual property reported static")
	}
}

func TestStoreClassQueries(t *testing.T) {
	t.Parallel()

	s := newStore(t)

	if !s.IsClassAbstract(`App\Entity\User`) || s.IsClassAbstract(`App\Model\Article`) {
		t.Error("IsClassAbstract")
	}
	if got := s.ClassPropertyNames(`App\Entity\User`); !reflect.DeepEqual(got, []string{"login", "password", "email"}) {
		t.Errorf("property names = %v", got)
	}
	if got := s.ClassMethodNames(`App\Model\Article`); !reflect.DeepEqual(got, []string{"label", "owner", "query"}) {
		t.Errorf("method names = %v", got)
	}
	if !s.IsClassAnnotatedWith(`App\Entity\Account`, `Doctrine\ORM\Mapping\Id`) {
		t.Error("Account not annotated with Id")
	}
	if got := s.ClassAnnotations(`App\Entity\Account`, `Doctrine\ORM\Mapping\Id`); len(got) != 1 {
		t.Errorf("Id annotations = %v, want the formal one only", got)
	}
	if a, ok := s.ClassAnnotation(`App\Entity\Account`, "Table"); !ok || a.AnnotationName() != "Table" {
		t.Errorf("ClassAnnotation = %v, %v", a, ok)
	}
}

func TestStoreMethodQueries(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	const user = `App\Entity\User`

	if !s.HasMethod(user, "GETLOGIN") {
		t.Error("method lookup should ignore case")
	}
	if !s.IsMethodPublic(user, "getLogin") || !s.IsMethodProtected(user, "hash") || !s.IsMethodPrivate(user, "salt") {
		t.Error("method visibility")
	}
	if s.IsMethodStatic(user, "getLogin") {
		t.Error("getLogin reported static")
	}
	if got := s.MethodType(`App\Model\Article`, "label"); got != "string" {
		t.Errorf("label type = %q", got)
	}
	if got := s.MethodAnnotations(`App\Model\Article`, "owner", "return"); len(got) != 1 {
		t.Errorf("owner annotations = %v", got)
	}
}

func TestStoreClassMetadataIsACopy(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	meta, err := s.ClassMetadata(`App\Entity\User`)
	if err != nil {
		t.Fatal(err)
	}
	meta.Properties["login"].Visibility = model.Private
	if !s.IsPropertyPublic(`App\Entity\User`, "login") {
		t.Error("mutating the copy changed the store")
	}
}

func TestStoreEliminateProxy(t *testing.T) {
	t.Parallel()

	s := newStore(t, WithProxyInterfaces(`Doctrine\Persistence\Proxy`))

	name := `App\Proxy\UserProxy`
	if !s.EliminateProxy(&name) || name != `App\Entity\User` {
		t.Errorf("EliminateProxy = %q", name)
	}
	plain := `App\Entity\User`
	if s.EliminateProxy(&plain) || plain != `App\Entity\User` {
		t.Errorf("plain class rewritten to %q", plain)
	}
	if s.EliminateProxy(nil) {
		t.Error("nil name eliminated")
	}
}

func TestStoreBuildsOnce(t *testing.T) {
	t.Parallel()

	_, r := writeTree(t, storeFiles)
	tags := &countingTags{TagSource: tagreader.NewReader(nil)}
	s := New(r, tags)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !s.IsPropertyReadable(`App\Model\Article`, "id") {
				t.Error("id not readable")
			}
		}()
	}
	wg.Wait()

	if n := tags.classes.Load(); n != 1 {
		t.Errorf("class tags extracted %d times, want 1", n)
	}
}

func TestStoreWarm(t *testing.T) {
	t.Parallel()

	s := newStore(t)
	if err := s.Warm(`App\Entity\User`, `App\Model\Article`, `App\Missing`); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d", s.Len())
	}
}

// memPersister is an in-memory Persister.
type memPersister struct {
	mu    sync.Mutex
	data  map[string]*model.ClassMetadata
	saves int
	err   error
}

func (m *memPersister) Load(_ context.Context, className string) (*model.ClassMetadata, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	meta, ok := m.data[className]
	return meta, ok, nil
}

func (m *memPersister) Save(_ context.Context, meta *model.ClassMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.data == nil {
		m.data = make(map[string]*model.ClassMetadata)
	}
	m.data[meta.Name] = meta.Clone()
	m.saves++
	return nil
}

func TestStorePersister(t *testing.T) {
	t.Parallel()

	root, r := writeTree(t, storeFiles)
	p := &memPersister{}

	first := New(r, tagreader.NewReader(nil), WithPersister(p))
	if !first.IsPropertyReadable(`App\Model\Article`, "id") {
		t.Fatal("id not readable")
	}
	if p.saves != 1 {
		t.Fatalf("saves = %d", p.saves)
	}

	tags := &countingTags{TagSource: tagreader.NewReader(nil)}
	second := New(r, tags, WithPersister(p))
	if !second.IsPropertyReadable(`App\Model\Article`, "id") {
		t.Error("persisted record lost id")
	}
	if n := tags.classes.Load(); n != 0 {
		t.Errorf("fresh persisted record rebuilt %d times", n)
	}

	// Touching the source without changing it keeps the record.
	path := filepath.Join(root, "Model/Article.php")
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	third := New(r, tags, WithPersister(p))
	if !third.IsClassReflected(`App\Model\Article`) {
		t.Fatal("Article not reflected")
	}
	if n := tags.classes.Load(); n != 0 {
		t.Errorf("touched record rebuilt %d times", n)
	}
	if p.saves != 2 {
		t.Errorf("touched record not re-saved, saves = %d", p.saves)
	}

	// Changing the content makes it stale.
	src, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, append(src, "\n// edited\n"...), 0o644); err != nil {
		t.Fatal(err)
	}
	fourth := New(r, tags, WithPersister(p))
	if !fourth.IsClassReflected(`App\Model\Article`) {
		t.Fatal("Article not reflected")
	}
	if n := tags.classes.Load(); n != 1 {
		t.Errorf("stale record rebuilt %d times, want 1", n)
	}
}

func TestStorePersisterErrorsAreLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	p := &memPersister{err: errors.New("unavailable")}
	s := newStore(t, WithPersister(p), WithLogger(zap.New(core)))

	if !s.IsPropertyPublic(`App\Entity\User`, "login") {
		t.Error("query failed with a broken persister")
	}
	if got := logs.FilterMessage("loading persisted metadata").Len(); got != 1 {
		t.Errorf("load warnings = %d", got)
	}
	if got := logs.FilterMessage("saving persisted metadata").Len(); got != 1 {
		t.Errorf("save warnings = %d", got)
	}
}
