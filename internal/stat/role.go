package stat

// RoleStat is one stat contribution of a role.
//
// If Table is set, Table[level-1] is the contribution (last entry beyond the table).
// Otherwise the contribution is Base plus growth: Growth formula (vars level, base)
// when set, else PerLevel*(level-1).
type RoleStat struct {
	Base     float64
	PerLevel float64
	Growth   string
	Table    []float64
}

// Role is a named bundle of stat contributions.
type Role struct {
	Name  string
	Stats map[string]RoleStat
}

// Bonus adds eval(Formula) to Target, with value bound to the resolved Source.
type Bonus struct {
	Source  string
	Target  string
	Formula string
}
