package projects

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Selection is one resolved authoritative file for a project and role.
// Tier names the rule that made the decision; Guessed marks selections made
// by the opt-in heuristic tier, which are never to be treated as confident.
type Selection struct {
	Key     Key
	Path    string
	Tier    string
	Guessed bool
}

// Result partitions the projects that had at least one candidate: a key is
// either in Selected or its candidates are in Ambiguous, never both.
// Projects whose candidates were not even plausible matches are omitted from
// both, which is distinct from "zero candidates found".
type Result struct {
	Selected  map[Key]Selection
	Ambiguous []Candidate
}

// AmbiguousKeys returns the distinct project keys present in the ambiguous
// set, in first-seen order.
func (r *Result) AmbiguousKeys() []Key {
	var keys []Key
	seen := make(map[Key]bool)
	for _, c := range r.Ambiguous {
		if !seen[c.Key] {
			seen[c.Key] = true
			keys = append(keys, c.Key)
		}
	}
	return keys
}

// ResolverOptions configures candidate selection.
type ResolverOptions struct {
	// DiscardTags are path substrings excluding database candidates before
	// the main tiers run. Nil means DefaultDiscardTags; an empty non-nil
	// slice disables discarding.
	DiscardTags []string
	// AllowGuess enables the heuristic last-resort tier. Selections made by
	// it carry Guessed=true and a warning log; with AllowGuess off the same
	// projects land in the ambiguous set.
	AllowGuess bool
}

// Resolver selects at most one file per project per role from a flat
// candidate table. Resolution is a pure function of the candidate set and
// the configured rules: repeated calls yield identical partitions.
type Resolver struct {
	dirs        map[Key]string
	discardTags []string
	allowGuess  bool
}

// NewResolver builds a resolver over the known project records. The records
// are only read for the in-project-directory predicate.
func NewResolver(records []Record, opts ResolverOptions) *Resolver {
	dirs := make(map[Key]string, len(records))
	for _, rec := range records {
		dirs[rec.Key] = filepath.Clean(rec.Dir)
	}
	tags := opts.DiscardTags
	if tags == nil {
		tags = DefaultDiscardTags
	}
	return &Resolver{dirs: dirs, discardTags: tags, allowGuess: opts.AllowGuess}
}

// candidate flags are derived fresh per resolution, never stored.
type flagged struct {
	Candidate
	inPrj    bool // parent directory is the project directory itself
	isName   bool // filename equals the canonical name (case-insensitive)
	likeName bool // filename contains the role keyword (case-insensitive)
	kept     bool // path contains no discard tag
}

// Resolve runs the tiered selection for one role over the candidate table.
// Ambiguity is a reportable outcome, not an error; Resolve fails only on
// malformed input, such as a candidate whose project key is unknown.
func (r *Resolver) Resolve(role Role, candidates []Candidate, priority []string) (*Result, error) {
	spec, ok := roleSpecs[role]
	if !ok {
		return nil, eris.Errorf("projects: unknown role %d", int(role))
	}

	groups, order, err := r.groupAndFlag(spec, candidates)
	if err != nil {
		return nil, err
	}

	prioritySet := make(map[string]bool, len(priority))
	for _, p := range priority {
		prioritySet[filepath.Clean(p)] = true
	}

	result := &Result{Selected: make(map[Key]Selection)}
	for _, key := range order {
		group := groups[key]

		sel, tier := r.selectOne(role, group)

		// Manual override: checked only after every automatic tier failed.
		if sel == nil && len(prioritySet) > 0 {
			if c, ok := singleton(group, func(f flagged) bool {
				return prioritySet[filepath.Clean(f.Path)]
			}); ok {
				sel, tier = c, "priority"
			}
		}

		guessed := false
		if sel == nil && r.allowGuess {
			if c := guess(role, group); c != nil {
				sel, tier, guessed = c, "guess", true
				zap.L().Warn("projects: heuristic file selection",
					zap.String("role", role.String()),
					zap.String("region", key.Region),
					zap.String("project", key.Project),
					zap.String("path", c.Path),
				)
			}
		}

		if sel != nil {
			result.Selected[key] = Selection{Key: key, Path: sel.Path, Tier: tier, Guessed: guessed}
			continue
		}

		// No tier produced a single survivor. Geometry groups where not one
		// candidate even loosely matches the keyword are not real candidates
		// at all and are omitted from both outputs.
		if spec.keyword != "" && !anyFlag(group, func(f flagged) bool { return f.likeName }) {
			continue
		}
		for _, f := range group {
			result.Ambiguous = append(result.Ambiguous, f.Candidate)
		}
	}
	return result, nil
}

// selectOne applies the fixed-priority tiers for the role. The first tier
// that narrows the group to exactly one candidate wins; later tiers are
// never consulted.
func (r *Resolver) selectOne(role Role, group []flagged) (*Candidate, string) {
	type tier struct {
		name string
		pred func(flagged) bool
	}

	var tiers []tier
	if role == RoleDatabase {
		// A valid database file can have any name: selection leans on
		// location and on the discard-tag denylist.
		tiers = []tier{
			{"trivial", func(flagged) bool { return true }},
			{"projectdir", func(f flagged) bool { return f.inPrj }},
			{"undiscarded", func(f flagged) bool { return f.kept }},
			{"projectdir+undiscarded", func(f flagged) bool { return f.inPrj && f.kept }},
		}
	} else {
		tiers = []tier{
			{"trivial", func(flagged) bool { return true }},
			{"canonical", func(f flagged) bool { return f.isName }},
			{"canonical+projectdir", func(f flagged) bool { return f.isName && f.inPrj }},
			{"keyword", func(f flagged) bool { return f.likeName }},
			{"keyword+projectdir", func(f flagged) bool { return f.likeName && f.inPrj }},
		}
	}

	for _, t := range tiers {
		if c, ok := singleton(group, t.pred); ok {
			return c, t.name
		}
	}
	return nil, ""
}

func (r *Resolver) groupAndFlag(spec roleSpec, candidates []Candidate) (map[Key][]flagged, []Key, error) {
	groups := make(map[Key][]flagged)
	var order []Key
	for _, c := range candidates {
		prjDir, known := r.dirs[c.Key]
		if !known {
			return nil, nil, eris.Errorf("projects: candidate %s belongs to unknown project %s/%s",
				c.Path, c.Key.Region, c.Key.Project)
		}
		lower := strings.ToLower(c.Name)
		f := flagged{
			Candidate: c,
			inPrj:     filepath.Dir(filepath.Clean(c.Path)) == prjDir,
			isName:    spec.canonical != "" && lower == spec.canonical,
			likeName:  spec.keyword != "" && strings.Contains(lower, spec.keyword),
			kept:      !r.discarded(c.Path),
		}
		if _, seen := groups[c.Key]; !seen {
			order = append(order, c.Key)
		}
		groups[c.Key] = append(groups[c.Key], f)
	}
	return groups, order, nil
}

func (r *Resolver) discarded(path string) bool {
	lower := strings.ToLower(path)
	for _, tag := range r.discardTags {
		if strings.Contains(lower, strings.ToLower(tag)) {
			return true
		}
	}
	return false
}

// singleton returns the only candidate satisfying pred, or false when zero
// or more than one do. Ties are never broken arbitrarily.
func singleton(group []flagged, pred func(flagged) bool) (*Candidate, bool) {
	var hit *Candidate
	for i := range group {
		if pred(group[i]) {
			if hit != nil {
				return nil, false
			}
			hit = &group[i].Candidate
		}
	}
	return hit, hit != nil
}

func anyFlag(group []flagged, pred func(flagged) bool) bool {
	for _, f := range group {
		if pred(f) {
			return true
		}
	}
	return false
}

var nonWordRe = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeName standardizes a filename for heuristic comparison: lowercase,
// extension stripped, punctuation collapsed to single spaces.
func normalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = nonWordRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// guess implements the opt-in last-resort tier. Among the plausible subset
// (keyword matches for geometry roles, undiscarded files for the database
// role) it picks the shortest normalized name, then the lexicographically
// first path. Deterministic, but a guess: callers must treat the result as
// flagged output, not a confident selection.
func guess(role Role, group []flagged) *Candidate {
	subset := make([]flagged, 0, len(group))
	for _, f := range group {
		if role == RoleDatabase && f.kept {
			subset = append(subset, f)
		}
		if role != RoleDatabase && f.likeName {
			subset = append(subset, f)
		}
	}
	if len(subset) == 0 {
		subset = group
	}
	if len(subset) == 0 {
		return nil
	}

	best := subset[0]
	for _, f := range subset[1:] {
		bn, fn := normalizeName(best.Name), normalizeName(f.Name)
		if len(fn) < len(bn) || (len(fn) == len(bn) && f.Path < best.Path) {
			best = f
		}
	}
	return &best.Candidate
}
