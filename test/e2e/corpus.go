// Package e2e provides end-to-end tests that scan a seeded corpus through the HTTP API.
package e2e

import (
	"fmt"
	"strings"
)

// Essay is a corpus entry, uploaded as a plain text file.
type Essay struct {
	Filename string
	Content  string
}

// Probe is a submission derived from one corpus essay. The scan must rank that essay first.
type Probe struct {
	Description string
	Filename    string
	Content     string
	Source      string // Filename of the essay it was derived from
	Exact       bool
}

// Corpus holds the seed essays and the probes scanned against them.
type Corpus struct {
	Essays []Essay
	Probes []Probe
}

var topics = []struct {
	slug      string
	sentences []string
}{
	{"tides", []string{
		"Ocean tides rise and fall twice daily because the moon pulls on coastal water.",
		"Spring tides appear when the sun and moon align during new and full moons.",
		"Harbor pilots consult tide tables before guiding deep vessels through shallow channels.",
	}},
	{"bread", []string{
		"Sourdough bread relies on wild yeast and lactic bacteria living in a flour starter.",
		"Bakers feed the starter regularly so fermentation produces gas and sour flavor.",
		"A long cold proof lets the dough develop an open crumb and blistered crust.",
	}},
	{"glaciers", []string{
		"Glaciers carve valleys as compacted snow slowly flows downhill under its own weight.",
		"Meltwater streams carry gravel that settles into moraines along the glacial margins.",
		"Retreating ice sheets expose polished bedrock scratched with parallel striations.",
	}},
	{"bees", []string{
		"Honeybee colonies coordinate foraging through a waggle dance performed inside the hive.",
		"Worker bees collect nectar and pollen while the queen lays thousands of eggs.",
		"Beekeepers inspect frames each week looking for mites, brood disease and swarming cells.",
	}},
	{"chess", []string{
		"Chess openings such as the Sicilian defense shape the pawn structure for the middlegame.",
		"Grandmasters calculate forcing lines involving checks, captures and direct threats.",
		"Endgame technique converts small material advantages into a winning king march.",
	}},
	{"volcano", []string{
		"Shield volcanoes form from runny basalt lava that spreads across wide gentle slopes.",
		"Explosive eruptions occur when gas trapped in sticky magma suddenly decompresses.",
		"Seismologists monitor tremors and ground swelling to forecast imminent eruptions.",
	}},
	{"coffee", []string{
		"Coffee cherries are harvested, pulped and dried before the green beans are roasted.",
		"Roasting triggers Maillard reactions that create caramel and chocolate aromas.",
		"Baristas adjust grind size and brew ratio to balance acidity against bitterness.",
	}},
	{"railways", []string{
		"Steam locomotives transformed nineteenth century trade by hauling freight across continents.",
		"Signal boxes controlled switches and semaphores so trains shared single track safely.",
		"Modern high speed rail uses overhead catenary wires feeding electric traction motors.",
	}},
	{"orchids", []string{
		"Orchids grow as epiphytes clinging to tree bark in humid tropical forests.",
		"Many orchid flowers mimic female insects to attract pollinating male wasps.",
		"Growers water orchids sparingly and pot them in loose bark to protect their roots.",
	}},
	{"compilers", []string{
		"Compilers translate source code into machine instructions through several passes.",
		"The parser builds an abstract syntax tree that later stages annotate with types.",
		"Register allocation assigns variables to processor registers and spills the remainder.",
	}},
}

// BuildCorpus returns one essay per topic plus three probes per essay: a byte-identical
// resubmission, a reordered copy with an extra sentence, and a shortened excerpt.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	for _, t := range topics {
		name := t.slug + ".txt"
		content := strings.Join(t.sentences, " ")
		c.Essays = append(c.Essays, Essay{Filename: name, Content: content})

		c.Probes = append(c.Probes,
			Probe{
				Description: t.slug + " resubmitted",
				Filename:    t.slug + "-copy.txt",
				Content:     content,
				Source:      name,
				Exact:       true,
			},
			Probe{
				Description: t.slug + " reordered",
				Filename:    t.slug + "-reordered.txt",
				Content:     reorder(t.sentences) + " These notes were revised for the second edition.",
				Source:      name,
			},
			Probe{
				Description: t.slug + " excerpt",
				Filename:    t.slug + "-excerpt.txt",
				Content:     strings.Join(t.sentences[:2], " "),
				Source:      name,
			},
		)
	}
	return c
}

func reorder(sentences []string) string {
	out := make([]string, len(sentences))
	for i, s := range sentences {
		out[len(sentences)-1-i] = s
	}
	return strings.Join(out, " ")
}

// String summarizes the corpus for test logs.
func (c *Corpus) String() string {
	return fmt.Sprintf("%d essays, %d probes", len(c.Essays), len(c.Probes))
}
