// Package e2e runs the whole screening pipeline against a synthetic corpus
// with known ground truth.
package e2e

import (
	"fmt"
	"strings"
)

// Paper is one synthetic corpus item together with its expected screening
// outcome. Positive papers describe a synthesis in language the mock client
// recognizes; negative papers are measurement and theory abstracts with no
// synthesis wording at all.
type Paper struct {
	ID       string
	Text     string
	Positive bool
	Material string
}

// BuildPapers returns a fixed corpus of synthetic papers. The last paper is
// long enough to split into several chunks under the e2e token budget, with
// the synthesis description only in the final chunk.
func BuildPapers() []Paper {
	papers := []Paper{
		{
			ID:       "2401.00101",
			Positive: true, Material: "perovskite",
			Text: "Single crystals of the halide perovskite CsPbBr3 were synthesized by inverse temperature crystallization. " +
				"Precursor solutions in DMSO were heated to 90 C at 2 C per hour. " +
				"The resulting crystals show millimeter-scale facets and narrow photoluminescence.",
		},
		{
			ID:       "2401.00102",
			Positive: true, Material: "perovskite",
			Text: "We report the solvothermal synthesis of a lead-free double perovskite Cs2AgBiBr6. " +
				"Stoichiometric halide salts were dissolved in HBr and held at 110 C for 12 hours. " +
				"Powder diffraction confirms phase purity above 98 percent.",
		},
		{
			ID:       "2401.00103",
			Positive: true, Material: "perovskite",
			Text: "Thin films of the perovskite MAPbI3 were synthesized by two-step spin coating under nitrogen. " +
				"PbI2 layers were converted in a methylammonium iodide bath at 70 C. " +
				"Devices built on these films reach 19 percent efficiency.",
		},
		{
			ID:       "2401.00201",
			Positive: true, Material: "zeolite",
			Text: "Hierarchical ZSM-5 zeolite was synthesized hydrothermally at 180 C for 72 hours. " +
				"Tetrapropylammonium hydroxide served as the structure directing agent with silica sol as the source. " +
				"Mesopores were introduced by controlled desilication in NaOH.",
		},
		{
			ID:       "2401.00202",
			Positive: true, Material: "zeolite",
			Text: "We describe the fluoride-route synthesis of pure-silica zeolite beta. " +
				"Gels were aged for 24 hours, then crystallized at 150 C in PTFE-lined autoclaves for ten days. " +
				"The product shows no connectivity defects in 29Si NMR.",
		},
		{
			ID:       "2401.00301",
			Positive: true, Material: "graphene",
			Text: "Monolayer graphene was synthesized by chemical vapor deposition on copper foil. " +
				"Methane and hydrogen flows were balanced at 1035 C and 50 mTorr. " +
				"Raman mapping gives a 2D to G ratio above two across centimeter scales.",
		},
		{
			ID:       "2401.00302",
			Positive: true, Material: "graphene",
			Text: "Nitrogen-doped graphene foams were synthesized by pyrolysis of melamine-impregnated templates. " +
				"Annealing at 900 C under argon yields four atomic percent nitrogen. " +
				"The foams sustain 95 percent capacitance over ten thousand cycles.",
		},
		{
			ID:       "2401.00401",
			Positive: true, Material: "oxide",
			Text: "Epitaxial films of the complex oxide LaNiO3 were synthesized by pulsed laser deposition. " +
				"Growth at 620 C in 150 mTorr oxygen gives unit-cell-level smoothness. " +
				"Transport shows the expected metal-insulator crossover under strain.",
		},
		{
			ID:       "2401.00402",
			Positive: true, Material: "oxide",
			Text: "Mesoporous titanium oxide spheres were synthesized via a sol-gel route with block copolymer templating. " +
				"Calcination at 450 C removes the template while preserving 8 nm pores. " +
				"The spheres outperform commercial powders in dye degradation.",
		},
		{
			ID:       "2401.00501",
			Positive: false,
			Text: "We measure the thermal Hall conductivity of a frustrated magnet down to 50 mK. " +
				"The signal tracks the phonon mean free path rather than any exotic carrier. " +
				"Our results constrain proposals for emergent excitations in this family.",
		},
		{
			ID:       "2401.00502",
			Positive: false,
			Text: "A tensor network study of the two-dimensional Hubbard model at finite doping. " +
				"We compare stripe and uniform ansatz energies across cluster geometries. " +
				"The energy differences fall within the extrapolation uncertainty.",
		},
		{
			ID:       "2401.00503",
			Positive: false,
			Text: "Angle-resolved photoemission reveals a flat band near the Fermi level in a kagome metal. " +
				"Matrix element analysis separates surface and bulk contributions. " +
				"The band flattens further under uniaxial strain.",
		},
		{
			ID:       "2401.00504",
			Positive: false,
			Text: "We derive bounds on entanglement growth after a quantum quench in integrable chains. " +
				"Quasiparticle pictures reproduce the numerics for short times. " +
				"Deviations appear once the light cone wraps the finite system.",
		},
		{
			ID:       "2401.00505",
			Positive: false,
			Text: "Muon spin rotation measurements on a candidate spin liquid show no static order down to 20 mK. " +
				"The relaxation rate plateaus below 1 K, consistent with persistent dynamics. " +
				"We discuss implications for the phase diagram under pressure.",
		},
		{
			ID:       "2401.00506",
			Positive: false,
			Text: "A machine-learned interatomic potential reproduces phonon dispersions across a benchmark set. " +
				"Training on forces alone transfers poorly to stress response. " +
				"Augmenting the loss with virials closes most of the gap.",
		},
		{
			ID:       "2401.00507",
			Positive: false,
			Text: "We simulate grain boundary motion in polycrystals under cyclic loading. " +
				"Boundary stiffness anisotropy controls the fatigue crack path. " +
				"The model matches electron backscatter data from aluminum alloys.",
		},
		{
			ID:       "2401.00508",
			Positive: false,
			Text: "Terahertz spectroscopy of a charge density wave compound under photoexcitation. " +
				"The amplitude mode softens within the first picosecond and recovers biexponentially. " +
				"Fluence scaling rules out simple lattice heating.",
		},
	}
	papers = append(papers, longPaper())
	return papers
}

// longPaper builds a multi-chunk positive paper whose synthesis description
// sits in the final sentences, so a correct reduction must OR across chunks.
func longPaper() Paper {
	var b strings.Builder
	b.WriteString("A review of transport phenomena in microporous crystalline frameworks. ")
	for i := 0; i < 120; i++ {
		fmt.Fprintf(&b, "Section %d surveys diffusion pathways and framework flexibility effects reported across the recent literature on confined transport. ", i+1)
	}
	b.WriteString("As a demonstration, a fresh zeolite sample was synthesized hydrothermally at 170 C for 48 hours and its uptake kinetics measured in situ.")
	return Paper{ID: "2402.10000", Text: b.String(), Positive: true, Material: "zeolite"}
}

// ExpectedPositives counts papers that should screen positive.
func ExpectedPositives(papers []Paper) int {
	n := 0
	for _, p := range papers {
		if p.Positive {
			n++
		}
	}
	return n
}

// ExpectedMaterials returns the material histogram over positive papers.
func ExpectedMaterials(papers []Paper) map[string]int {
	m := make(map[string]int)
	for _, p := range papers {
		if p.Positive {
			m[p.Material]++
		}
	}
	return m
}
