package service

const (
	DefaultQuery     = "Describe the scene"
	assetDescription = "Reference media file"
)

// ApeironAnalysisPrompt asks the model for the performance report rendered by
// the Apeiron dashboard. The proxy never parses the answer.
const ApeironAnalysisPrompt = `
You are a professional analyst for the video game Apeiron. The player's units carry a green
health bar, enemy units a red one. The mana counter sits in the bottom right corner, below the deck.
Rate the player on:
- overallScore: overall performance, 0-10 with one decimal place
- playstyle: aggressive, passive, balanced, ...
- metrics.apm: actions per minute (int)
- metrics.accuracy: share of skills that hit an enemy (percentage)
- metrics.efficiency: mana spent per skill (percentage)
- metrics.adaptability: reaction to the enemy's actions (percentage)
- skillData: offensiveness, defensiveness, manaManagement, skillUsage, tactics, positioning
- strengths and weaknesses: 2-3 short points each, with explanations

Answer with a single JSON object of this shape and nothing else:
{
    "overallScore": ,
    "playstyle": ,
    "metrics": {"apm": , "accuracy": , "efficiency": , "adaptability": },
    "skillData": {"offensiveness": , "defensiveness": , "manaManagement": , "skillUsage": , "tactics": , "positioning": },
    "strengths": ,
    "weaknesses": 
}
`
