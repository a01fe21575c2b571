package gemini

import "fmt"

const productAnalysisPrompt = `You are an expert image analyst. Look at the product photo and return:
- productType: what the product is, in a few words
- imageQuality: a short assessment of lighting, focus and framing
- friendlyCaption: one encouraging line for the user, for example
  "Clean product shot detected. Ready for a cinematic touch?" for products,
  "A bit out of focus - our AI will fix that in seconds." for blurry photos,
  "Perfect upload! Let's see what Magicpixa can do." when unsure.`

const vintageAnalysisPrompt = `You are an expert in historical photographs. Look at the old photo and return:
- imageType: what the photo shows (portrait, group, landscape, document...)
- imageQuality: condition of the print (fading, scratches, sepia, black and white)
- friendlyCaption: one encouraging line, for example "Vintage vibes detected - we'll colorize this beautifully."`

func enhancePrompt(productType string) string {
	return fmt.Sprintf(`You are an expert product photographer. Produce a hyper-realistic, professionally shot image of the product provided.

Never modify the product itself: packaging, logo, brand name, text and labels stay exactly as they are. Only improve the environment, lighting, background and presentation. The result must be high definition and photorealistic.

The product is a: %s`, productType)
}

func colorizePrompt(subject string) string {
	return fmt.Sprintf(`You are an expert in historical photo restoration. Colorize the provided black and white or sepia photo with photorealistic, historically accurate colors.
- Skin tones, clothing and background must look natural for the era.
- Do not alter the content of the photo, only add color.
- The main subject of the photo is: %s.`, subject)
}

func postGenerationPrompt(productType string) string {
	return fmt.Sprintf(`You are a marketing expert. A professional image of a user's product, a %q, has just been generated.
Return a one-sentence description of the new image and a short, actionable marketing tip.`, productType)
}
