package generate

// The recipe prompt sandwiches the paper text between a fixed instruction
// block and a fixed constraint block. Plain concatenation rather than a
// format verb: the template itself contains percent signs.

const recipePromptHead = `Given this paper describing how to make a material, write down a step by step guide of the synthesis recipe.
The recipe should include the following sections:
1. Target Material
2. Reagents
3. Environment Parameters
4. Equipment
5. Procedure
6. Notes (if any)

Please format the response exactly like this example and use LaTeX for mathematical expressions and chemical formulas:

------------------ EXAMPLE STARTS ------------------

## Target Material: 
    Chemical Formula: $\text{FAPbI}_3$
    Form: Single Crystals
    Expected Purity: >99.99%

## Reagents: 
    1. Formamidinium iodide (FAI)
       - Chemical Formula: $\text{CH}_5\text{N}_2\text{I}$
       - Purity: >99.99%
       - Form: Powder
    2. Lead(II) iodide ($\text{PbI}_2$)
       - Chemical Formula: $\text{PbI}_2$
       - Purity: >99.99%
       - Form: Powder
    3. γ-butyrolactone (GBL)
       - Chemical Formula: $\text{C}_4\text{H}_6\text{O}_2$
       - Purity: >99.9%
       - Form: Liquid

## Environment Parameters:
    Temperature Range: $60-180\,^\circ\text{C}$
    Atmosphere: N₂ (inert)
    Pressure: Ambient (1 atm)
    Humidity: <1% RH (in glovebox)

## Equipment:
    1. Vessels:
       - Type: Glass vial
         Specifications: 20 mL, borosilicate
       - Type: Glass microfibre filter
         Specifications: 25 mm diameter, 0.45 µm pore size
    2. Processing Equipment:
       - Type: Stirring apparatus
         Specifications: Teflon-coated magnetic stirrer, temperature control
       - Type: Hot plate
         Specifications: Temperature range 0-300°C, digital display
       - Type: Vacuum oven
         Specifications: Temperature range up to 200°C, vacuum capability
       - Type: Oil bath
         Specifications: Temperature range 0-200°C, 2L capacity
    3. Safety Equipment:
       - Type: N₂ glovebox
         Specifications: O₂ and H₂O levels < 1 ppm
       - Type: Chemical fume hood
         Specifications: Standard laboratory grade
       - Type: Personal protective equipment
         Specifications: Nitrile gloves, lab coat, safety glasses

## Procedure:
    1. Preparation of the Precursor Solution:
       - Weigh out 687.9 mg (4 mmol) of formamidinium iodide (FAI) and 1844.0 mg (4 mmol) of lead(II) iodide ($\text{PbI}_2$)
       - Dissolve these in 4 mL of γ-butyrolactone (GBL) to make a $1\,\text{M}$ solution
       - Mix using magnetic stirring at $60\,^\circ\text{C}$ for 4 hours
    2. Filtration:
       - Filter the solution using a 25 mm diameter, 0.45 µm pore glass microfibre filter
       - Collect the filtrate in a clean glass vial
    3. Crystal Growth:
       - Transfer the filtrate to a clean vial
       - Heat the vial in an oil bath at $95\,^\circ\text{C}$ for 4 hours
       - Maintain undisturbed conditions for crystal formation
    4. Drying:
       - Transfer crystals to a clean container
       - Dry in a vacuum oven at $180\,^\circ\text{C}$ for 45 minutes
    5. Storage:
       - Store the crystals in an N₂-filled container
       - Keep in a desiccator to prevent moisture absorption

## Notes:
    - All synthetic work must be conducted in an N₂ glovebox except for the drying step
    - Ensure all chemicals are of high purity (>99.99%)
    - The drying step is critical for removing residual solvent
    - Crystal quality can be verified using X-ray diffraction
    - The resulting crystals can be used for further characterization or application in perovskite solar cells

------------------ EXAMPLE ENDS ------------------

Here is the paper text:

`

const recipePromptTail = `

IMPORTANT:
- Do not include any other text than the synthesis recipe.
- Do not include information that is not in the paper. And do not assume any information.
- Do not include any other sections than the ones specified in the example.

Your synthesis recipe: `

func buildPrompt(paperText string) string {
	return recipePromptHead + paperText + recipePromptTail
}
