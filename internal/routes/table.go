// Package routes implements the custom route table: an ordered list of
// rewrite rules consulted before URL segments are dispatched.
//
// A rule matches by exact path, by regular expression, or by predicate, and
// may be restricted to a set of HTTP methods. Rules are tried in
// registration order and the first match decides the rewritten path.
package routes

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/conneroisu/ni/internal/config"
	nierrors "github.com/conneroisu/ni/internal/errors"
)

// MatcherKind tells how a rule matches a path.
type MatcherKind int

const (
	KindExact MatcherKind = iota
	KindPattern
	KindPredicate
)

func (k MatcherKind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindPattern:
		return "pattern"
	case KindPredicate:
		return "predicate"
	default:
		return fmt.Sprintf("MatcherKind(%d)", int(k))
	}
}

// Predicate decides whether a rule applies to path. A non-empty result is
// the rewritten path; an empty result with ok true selects the rule's
// destination.
type Predicate func(path string, rule *Rule) (rewritten string, ok bool)

// Rule is one custom route.
type Rule struct {
	Kind        MatcherKind
	Literal     string
	Pattern     *regexp.Regexp
	Predicate   Predicate
	Destination string
	// Methods holds upper-cased method names; empty matches every method
	Methods []string
}

// Matcher returns a printable form of the rule's matcher.
func (r *Rule) Matcher() string {
	switch r.Kind {
	case KindExact:
		return r.Literal
	case KindPattern:
		return r.Pattern.String()
	default:
		return "<predicate>"
	}
}

// AllowsMethod reports whether the rule applies to method.
func (r *Rule) AllowsMethod(method string) bool {
	if len(r.Methods) == 0 {
		return true
	}
	for _, m := range r.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// Rewrite applies the rule's matcher to path, ignoring methods.
//
// A pattern rule replaces only the leftmost match; the destination is
// expanded with regexp.Expand syntax, so "$1" and "${name}" refer to
// capture groups.
func (r *Rule) Rewrite(path string) (string, bool) {
	switch r.Kind {
	case KindExact:
		if path != r.Literal {
			return "", false
		}
		return r.Destination, true

	case KindPattern:
		loc := r.Pattern.FindStringSubmatchIndex(path)
		if loc == nil {
			return "", false
		}
		expanded := r.Pattern.ExpandString(nil, r.Destination, path, loc)
		return path[:loc[0]] + string(expanded) + path[loc[1]:], true

	case KindPredicate:
		rewritten, ok := r.Predicate(path, r)
		if !ok {
			return "", false
		}
		if rewritten == "" {
			return r.Destination, true
		}
		return rewritten, true
	}

	return "", false
}

// Table is an ordered list of rules. It is written during setup and read
// concurrently once the application serves requests; Freeze marks that
// transition.
type Table struct {
	mu     sync.RWMutex
	rules  []*Rule
	frozen bool
}

// New creates an empty table.
func New() *Table {
	return &Table{}
}

// AddExact registers a rule matching path exactly.
func (t *Table) AddExact(path, destination string, methods ...string) error {
	if destination == "" {
		return nierrors.ErrMissingDestination(path)
	}
	return t.add(&Rule{
		Kind:        KindExact,
		Literal:     path,
		Destination: destination,
		Methods:     normalizeMethods(methods),
	})
}

// AddPattern registers a rule matching re anywhere in the path.
func (t *Table) AddPattern(re *regexp.Regexp, destination string, methods ...string) error {
	if re == nil {
		return nilMatcher()
	}
	if destination == "" {
		return nierrors.ErrMissingDestination(re.String())
	}
	return t.add(&Rule{
		Kind:        KindPattern,
		Pattern:     re,
		Destination: destination,
		Methods:     normalizeMethods(methods),
	})
}

// AddPredicate registers a rule decided by fn. The destination may be
// empty when fn always supplies the rewritten path itself.
func (t *Table) AddPredicate(fn Predicate, destination string, methods ...string) error {
	if fn == nil {
		return nilMatcher()
	}
	return t.add(&Rule{
		Kind:        KindPredicate,
		Predicate:   fn,
		Destination: destination,
		Methods:     normalizeMethods(methods),
	})
}

// Add registers a rule, choosing its kind from the matcher's type: a string
// is an exact path, a *regexp.Regexp a pattern, and a Predicate (or a
// function of the same signature) a predicate.
func (t *Table) Add(matcher any, destination string, methods ...string) error {
	switch m := matcher.(type) {
	case string:
		return t.AddExact(m, destination, methods...)
	case *regexp.Regexp:
		return t.AddPattern(m, destination, methods...)
	case Predicate:
		return t.AddPredicate(m, destination, methods...)
	case func(string, *Rule) (string, bool):
		return t.AddPredicate(m, destination, methods...)
	case nil:
		return nilMatcher()
	default:
		return nierrors.NewRegistrationError(
			nierrors.ErrCodeBadMatcher,
			fmt.Sprintf("unsupported route matcher type %T", matcher),
		)
	}
}

// MustAdd is like Add but panics on a registration error.
func (t *Table) MustAdd(matcher any, destination string, methods ...string) {
	if err := t.Add(matcher, destination, methods...); err != nil {
		panic(err)
	}
}

// AddConfig registers a rule written in a configuration file.
func (t *Table) AddConfig(rc config.RouteConfig) error {
	switch {
	case rc.Path != "" && rc.Pattern != "":
		return nierrors.NewRegistrationError(
			nierrors.ErrCodeBadMatcher,
			"route sets both path and pattern",
		)
	case rc.Pattern != "":
		re, err := regexp.Compile(rc.Pattern)
		if err != nil {
			return nierrors.NewRegistrationError(
				nierrors.ErrCodeBadMatcher,
				fmt.Sprintf("invalid route pattern %q: %v", rc.Pattern, err),
			)
		}
		return t.AddPattern(re, rc.To, rc.AllMethods()...)
	case rc.Path != "":
		return t.AddExact(rc.Path, rc.To, rc.AllMethods()...)
	default:
		return nierrors.NewRegistrationError(
			nierrors.ErrCodeBadMatcher,
			"route needs a path or a pattern",
		)
	}
}

// AddFromConfig registers every configured rule in order, stopping at the
// first error.
func (t *Table) AddFromConfig(routes []config.RouteConfig) error {
	for i, rc := range routes {
		if err := t.AddConfig(rc); err != nil {
			var ne *nierrors.NiError
			if errors.As(err, &ne) {
				return ne.WithContext("index", i)
			}
			return err
		}
	}
	return nil
}

// Freeze rejects further registrations.
func (t *Table) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (t *Table) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

// Len returns the number of rules.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rules)
}

// Rules returns copies of the rules in registration order.
func (t *Table) Rules() []Rule {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rules := make([]Rule, len(t.rules))
	for i, r := range t.rules {
		rules[i] = *r
		rules[i].Methods = append([]string(nil), r.Methods...)
	}
	return rules
}

// Resolve rewrites path with the first rule matching path and method. The
// result always starts with "/".
func (t *Table) Resolve(path, method string) string {
	t.mu.RLock()
	rules := t.rules
	t.mu.RUnlock()

	for _, rule := range rules {
		if !rule.AllowsMethod(method) {
			continue
		}
		if rewritten, ok := rule.Rewrite(path); ok {
			return rooted(rewritten)
		}
	}

	return rooted(path)
}

func (t *Table) add(rule *Rule) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return nierrors.NewRegistrationError(
			nierrors.ErrCodeTableFrozen,
			"route "+rule.Matcher()+" added after boot",
		)
	}

	// Copy on write so Resolve can iterate a snapshot without holding the lock.
	rules := make([]*Rule, len(t.rules), len(t.rules)+1)
	copy(rules, t.rules)
	t.rules = append(rules, rule)
	return nil
}

func rooted(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

func normalizeMethods(methods []string) []string {
	if len(methods) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(methods))
	for _, m := range methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m != "" {
			normalized = append(normalized, m)
		}
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

func nilMatcher() error {
	return nierrors.NewRegistrationError(nierrors.ErrCodeBadMatcher, "route matcher is nil")
}
