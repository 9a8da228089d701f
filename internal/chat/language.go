package chat

// Language is an in-fiction language id. Two values are reserved sentinels.
type Language uint32

const (
	// LanguageUniversal is understood by everyone. Clients may only claim it
	// for the auto-reply categories; every other use is assigned server-side.
	LanguageUniversal Language = 0

	LanguageOrcish      Language = 1
	LanguageDarnassian  Language = 2
	LanguageTaurahe     Language = 3
	LanguageDwarvish    Language = 6
	LanguageCommon      Language = 7
	LanguageDemonic     Language = 8
	LanguageTitan       Language = 9
	LanguageThalassian  Language = 10
	LanguageDraconic    Language = 11
	LanguageKalimag     Language = 12
	LanguageGnomish     Language = 13
	LanguageTroll       Language = 14
	LanguageGutterspeak Language = 33
	LanguageDraenei     Language = 35

	// LanguageAddon carries opaque add-on payload instead of readable text.
	LanguageAddon Language = 0xFFFFFFFF
)
