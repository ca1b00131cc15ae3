package demographic

// Ethnicity codes used on the HMDA LAR (2018 onward).
const (
	EthnicityHispanic      = "1"
	EthnicityMexican       = "11"
	EthnicityPuertoRican   = "12"
	EthnicityCuban         = "13"
	EthnicityOtherHispanic = "14"
	EthnicityNotHispanic   = "2"
	EthnicityNotProvided   = "3"
	EthnicityNotApplicable = "4"
	EthnicityNoCoApplicant = "5"
)

// Race codes used on the HMDA LAR (2018 onward).
const (
	RaceNativeAmerican  = "1"
	RaceAsian           = "2"
	RaceAsianIndian     = "21"
	RaceChinese         = "22"
	RaceFilipino        = "23"
	RaceJapanese        = "24"
	RaceKorean          = "25"
	RaceVietnamese      = "26"
	RaceOtherAsian      = "27"
	RaceBlack           = "3"
	RacePacificIslander = "4"
	RaceNativeHawaiian  = "41"
	RaceGuamanian       = "42"
	RaceSamoan          = "43"
	RaceOtherPacific    = "44"
	RaceWhite           = "5"
	RaceNotProvided     = "6"
	RaceNotApplicable   = "7"
	RaceNoCoApplicant   = "8"
)

var hispanicCodes = map[string]struct{}{
	EthnicityHispanic:      {},
	EthnicityMexican:       {},
	EthnicityPuertoRican:   {},
	EthnicityCuban:         {},
	EthnicityOtherHispanic: {},
}

var raceCategories = map[string]Category{
	RaceNativeAmerican:  CategoryNativeAmerican,
	RaceAsian:           CategoryAsian,
	RaceAsianIndian:     CategoryAsian,
	RaceChinese:         CategoryAsian,
	RaceFilipino:        CategoryAsian,
	RaceJapanese:        CategoryAsian,
	RaceKorean:          CategoryAsian,
	RaceVietnamese:      CategoryAsian,
	RaceOtherAsian:      CategoryAsian,
	RaceBlack:           CategoryBlack,
	RacePacificIslander: CategoryPacificIslander,
	RaceNativeHawaiian:  CategoryPacificIslander,
	RaceGuamanian:       CategoryPacificIslander,
	RaceSamoan:          CategoryPacificIslander,
	RaceOtherPacific:    CategoryPacificIslander,
	RaceWhite:           CategoryWhite,
}
