// Package viseme translates external lip-sync timing formats into the
// Oculus viseme vocabulary consumed by the talking-head stage.
package viseme

// Viseme is one of the 15 Oculus lip-sync mouth shapes. The names match the
// blend-shape suffixes on the avatar models (viseme_aa, viseme_PP, ...).
type Viseme string

const (
	VisemeSil Viseme = "sil" // Silence, closed mouth
	VisemeAA  Viseme = "aa"  // Open jaw (father)
	VisemeE   Viseme = "E"   // Spread (bed)
	VisemeI   Viseme = "I"   // Narrow spread (sit)
	VisemeO   Viseme = "O"   // Rounded (go)
	VisemeU   Viseme = "U"   // Tight rounded (boot)
	VisemePP  Viseme = "PP"  // Closed lips (p, b, m)
	VisemeFF  Viseme = "FF"  // Lip on teeth (f, v)
	VisemeTH  Viseme = "TH"  // Tongue between teeth
	VisemeDD  Viseme = "DD"  // Alveolar stops (t, d)
	VisemeKK  Viseme = "kk"  // Velar stops (k, g)
	VisemeCH  Viseme = "CH"  // Affricates (ch, j, sh)
	VisemeSS  Viseme = "SS"  // Sibilants (s, z)
	VisemeNN  Viseme = "nn"  // Alveolar nasals/laterals (n, l)
	VisemeRR  Viseme = "RR"  // Retroflex (r)
)

// cueToViseme maps the 9-symbol mouth-cue alphabet produced by phonetic
// lip-sync analysis tools (Rhubarb style, A-H plus X) onto Oculus visemes.
var cueToViseme = map[string]Viseme{
	"A": VisemeAA, // "ah" sound
	"B": VisemePP, // Closed lips (p, b, m)
	"C": VisemeE,  // "eh" sound
	"D": VisemeAA, // Wide open mouth
	"E": VisemeO,  // "oh" sound
	"F": VisemeU,  // "oo" sound
	"G": VisemeFF, // "f" and "v" sounds
	"H": VisemeNN, // "l" sound
	"X": VisemeSil,
}

// MapCue converts a mouth-cue code to an Oculus viseme. Unknown codes fall
// back to silence so malformed third-party lip-sync files never break
// playback.
func MapCue(code string) Viseme {
	if v, ok := cueToViseme[code]; ok {
		return v
	}
	return VisemeSil
}
