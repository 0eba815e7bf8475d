package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultCategory is stored when the classifier's category is not in Categories
const DefaultCategory = "Tous les sports"

// Categories is the fixed list the classifier must choose from
var Categories = []string{
	"Activation",
	"Alpes 2030",
	"Ambush",
	"Athlétisme",
	"Aviron",
	"Badminton",
	"Basketball",
	"Boxe",
	"Branding",
	"Campagne",
	"Catch",
	"Chiffre",
	"Cyclisme",
	"Emploi",
	"Equitation",
	"Escalade",
	"Escrime",
	"eSport",
	"Fitness",
	"Football",
	"Football US",
	"Golf",
	"Gymnastique",
	"Handball",
	"Hippisme",
	"Hockey-sur-Glace",
	"Hommes & Femmes",
	"Insolite",
	"Institutions",
	"International",
	"Judo",
	"Karate",
	"LA28",
	"Marques & Entreprises",
	"Médias",
	"Merchandising",
	"Milan Cortina 2026",
	"MMA",
	"Natation",
	"Paris 2024",
	"Patinage artistique",
	"Podcast",
	"RSE",
	"Rugby",
	"Ski",
	"Sponsoring",
	"Sports de combat",
	"Sports de glisse",
	"Sports mécaniques",
	"Stades & Arenas",
	"Sumo",
	"Tennis / Padel",
	"Tennis de table",
	"Tir",
	DefaultCategory,
	"Trail",
	"Triathlon",
	"Vidéo",
	"Voile",
	"Volleyball",
}

// Access statuses, stored lower-case
const (
	AccessFree         = "free"
	AccessPaywall      = "paywall"
	AccessRegistration = "registration"
	AccessVideo        = "video"
	AccessAudio        = "audio"
)

// AccessStatuses lists the accepted access values
var AccessStatuses = []string{AccessFree, AccessPaywall, AccessRegistration, AccessVideo, AccessAudio}

var categoryIndex = func() map[string]string {
	idx := make(map[string]string, len(Categories))
	for _, c := range Categories {
		idx[foldKey(c)] = c
	}
	return idx
}()

// MatchCategory returns the canonical spelling of category, ignoring case
// and accents.
func MatchCategory(category string) (string, bool) {
	c, ok := categoryIndex[foldKey(category)]
	return c, ok
}

// foldKey lower-cases s and strips combining marks so "medias" and
// "MÉDIAS" compare equal to "Médias".
func foldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		folded = strings.TrimSpace(s)
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}
