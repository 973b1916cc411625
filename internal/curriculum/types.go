package curriculum

// UnitCount is the fixed number of memorization units in the curriculum.
const UnitCount = 30

// Unit is one juz of the memorization curriculum. Units are immutable
// reference data numbered 1..UnitCount.
type Unit struct {
	Number     int    `yaml:"number" json:"number"`
	Name       string `yaml:"name" json:"name"`
	FirstSurah int    `yaml:"first_surah" json:"first_surah"`
	FirstAyah  int    `yaml:"first_ayah" json:"first_ayah"`
	StartPage  int    `yaml:"start_page" json:"start_page"`
}

type unitFile struct {
	Units []Unit `yaml:"units"`
}
