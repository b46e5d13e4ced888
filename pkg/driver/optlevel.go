package driver

// Tier is a named set of optimisation settings.
type Tier struct {
	Name             string
	Passes           []string
	OmitFramePointer bool
	Builtins         bool
}

// baseline tiers are used alone at -O0 and -O1.
var baseline = []Tier{
	{Name: "O0", Passes: []string{"no-opt"}},
	{Name: "O1", Passes: []string{"no-inline"}},
}

// tiers[i] is added at level i+2 and every level above it.
var tiers = []Tier{
	{Name: "O2", Passes: []string{"inline", "deconv"}, OmitFramePointer: true},
	{Name: "O3", Passes: []string{"cond-eval", "if-conv"}, Builtins: true},
	{Name: "O4", Passes: []string{"strict-aliasing"}},
}

// MaxLevel is the highest distinct optimisation level.
var MaxLevel = len(tiers) + 1

// Policy is the union of the tiers selected by a level.
type Policy struct {
	Tiers            []string
	Passes           map[string]bool
	OmitFramePointer bool
	Builtins         bool
}

func (p *Policy) add(t Tier) {
	p.Tiers = append(p.Tiers, t.Name)
	for _, name := range t.Passes {
		p.Passes[name] = true
	}
	p.OmitFramePointer = p.OmitFramePointer || t.OmitFramePointer
	p.Builtins = p.Builtins || t.Builtins
}

// PolicyFor returns the settings for optimisation level. Levels above
// MaxLevel behave as MaxLevel.
func PolicyFor(level int) Policy {
	p := Policy{Passes: make(map[string]bool)}
	if level < len(baseline) {
		if level < 0 {
			level = 0
		}
		p.add(baseline[level])
		return p
	}
	level = min(level, MaxLevel)
	for _, t := range tiers[:level-1] {
		p.add(t)
	}
	return p
}

func knownPass(name string) bool {
	for _, ts := range [][]Tier{baseline, tiers} {
		for _, t := range ts {
			for _, p := range t.Passes {
				if p == name {
					return true
				}
			}
		}
	}
	return false
}
