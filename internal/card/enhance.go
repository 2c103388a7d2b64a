package card

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cvandijck/card-generator/internal/gemini"
)

const profilePrompt = `You are an expert at creating detailed written profiles for individuals that will guide AI image generation.

Task: Analyze the provided image and optional description to create a comprehensive profile that captures:

1. Physical Characteristics:
   - Facial features (face shape, skin tone, distinctive features)
   - Hair (color, style, length, texture)
   - Eyes (color, shape, expression)
   - Age appearance and build
   - Attire and accessories

2. Expression & Demeanor:
   - Facial expression and emotional state
   - Posture and body language
   - Overall personality impression

3. Key Identity Markers:
   - Any unique or distinctive features that define this person's appearance
   - Elements critical for maintaining accurate representation

Output Requirements:
- Write as a single, flowing paragraph
- Be specific and descriptive (avoid vague terms like "nice" or "pleasant")
- Focus on visual details that an image generator needs to recreate this person accurately
- Prioritize features that maintain the person's identity and likeness

<UserProvidedDescription>
%s
</UserProvidedDescription>

Detailed profile:`

const scenePrompt = `You are an expert at expanding simple scene instructions into rich, detailed descriptions for AI image generation in greeting card creation.

**CRITICAL: Focus ONLY on WHAT content appears in the image - the subjects, objects, setting, and composition. Do NOT include instructions about HOW the image should be rendered (artistic style, medium, rendering technique, etc.) - that is handled separately.**

Task: Transform the user's scene instruction into a comprehensive, vivid description of the image content that includes:

1. Environment & Setting:
   - Specific location and surroundings
   - Time of day and season
   - Weather conditions
   - Indoor or outdoor context
   - Physical environment details

2. Atmosphere & Mood:
   - Emotional tone the content should convey (joyful, serene, festive, cozy, etc.)
   - Energy level of the scene (calm, dynamic, celebratory)
   - Overall feeling the scene content should evoke

3. Visual Elements & Content:
   - Key objects, decorations, or props present
   - Background and foreground elements
   - What physical items, people, or features are visible
   - Specific details about the content

4. Composition & Framing:
   - Spatial arrangement and layout of elements
   - Perspective and viewing angle
   - Focal points and visual hierarchy
   - How subjects and objects are positioned and interact with the environment

5. Lighting Conditions:
   - Light sources and their positions (natural sunlight, candles, indoor lights, etc.)
   - Time-of-day lighting (morning, golden hour, night, etc.)
   - General brightness and lighting scenario

**What NOT to include:**
- Artistic style descriptions (photorealistic, illustrated, painterly, cartoon, etc.)
- Medium or rendering technique (oil painting, watercolor, digital art, etc.)
- Visual treatment or aesthetic choices (sharp/soft edges, texture quality, etc.)
- Technical rendering details (depth of field, filters, contrast levels, etc.)

Output Requirements:
- Write as a single, detailed paragraph describing only the CONTENT
- Be specific about WHAT appears in the image, not HOW it's rendered
- Maintain the user's original intent while adding richness about the scene content
- Provide clear, actionable guidance about what elements should be present
- Ensure the scene content complements and does not contradict the style rendering approach and profile descriptions if provided
- Keep style/rendering instructions completely separate - focus purely on scene content

<UserProvidedSceneInstructions>
%s
</UserProvidedSceneInstructions>

<UserProvidedConstraints>
%s
</UserProvidedConstraints>

<StyleInstructions>
%s
</StyleInstructions>

<ProfileDescriptions>
%s
</ProfileDescriptions>

Enhanced scene description (CONTENT ONLY - what appears in the image):`

const stylePrompt = `You are an expert at defining artistic styles and visual aesthetics for AI image generation in greeting card creation.

**CRITICAL: Focus ONLY on HOW the image should be rendered - the artistic style, medium, technique, and visual treatment. Do NOT include instructions about WHAT content appears in the image (subjects, objects, setting) - that is handled separately.**

Task: Transform the user's style instruction into a comprehensive, detailed style guide that includes:

The user provided instructions are often predefined instructions that do not necessarily comply with the
actual request, as illustrated by the PeopleDescriptions. Therefore, the model should interprete and subsequently
enhance the instructions as needed to ensure coherence and clarity in the final style description.

1. Artistic Style & Medium:
   - Overall artistic approach (photorealistic, illustrated, painted, digital art, etc.)
   - Specific art style or movement (impressionist, modern, vintage, cartoon, anime, etc.)
   - Medium appearance (oil painting, watercolor, digital render, pencil sketch, gouache, etc.)
   - Rendering technique and execution style

2. Color Treatment:
   - Color palette approach (warm/cool, muted/vibrant, pastel/bold, monochromatic)
   - Color harmony and relationships
   - Saturation and brightness levels
   - Color temperature and tonal treatment
   - How colors should be applied and blended

3. Lighting & Shadow Rendering:
   - How lighting should be rendered (soft, dramatic, flat, cinematic, etc.)
   - Shadow treatment and rendering style
   - Highlight handling
   - Overall tonal approach

4. Visual Treatment & Technique:
   - Level of detail (hyperdetailed, simplified, stylized, abstracted)
   - Texture rendering and surface qualities
   - Edge treatment (sharp, soft, painterly, clean, rough)
   - Contrast and tonal range
   - Brushwork or mark-making style (if applicable)

5. Technical & Aesthetic Qualities:
   - Image quality descriptors (crisp, dreamy, sharp, ethereal, polished, raw, etc.)
   - Depth of field treatment
   - Visual effects, filters, or post-processing
   - Overall finish and polish level
   - Grain, noise, or texture overlays

6. Reference Style:
   - Comparable artists, photographers, or illustrators (if applicable)
   - Art movement or period aesthetics
   - Genre-specific visual conventions
   - Cultural or era-specific rendering approaches

**What NOT to include:**
- Scene content descriptions (what objects, people, or elements appear)
- Setting or location details
- Composition or spatial arrangement
- What specific items or subjects are present
- Environmental or atmospheric content

Output Requirements:
- Write as a single, detailed paragraph describing only the RENDERING STYLE
- Be specific about HOW the image should look, not WHAT it should contain
- Use technical and artistic terminology for precision
- Provide clear visual direction for the rendering approach
- Ensure the rendering style complements greeting card aesthetics
- Maintain the user's original intent while adding technical precision
- Ensure the rendering style complements and does not contradict the scene content and profile descriptions if provided
- Keep content/composition instructions completely separate - focus purely on visual rendering

<StyleInstructions>
%s
</StyleInstructions>

<SceneInstructions>
%s
</SceneInstructions>

<PeopleDescriptions>
%s
</PeopleDescriptions>

Enhanced style description (RENDERING ONLY - how the image should be rendered):`

// SceneContext carries a scene instruction plus the optional surrounding
// inputs the rewrite should stay coherent with.
type SceneContext struct {
	Instructions string
	Constraints  string
	Style        string
	Profiles     string
}

// StyleContext carries a style instruction plus the optional surrounding
// inputs the rewrite should stay coherent with.
type StyleContext struct {
	Instructions string
	Scene        string
	Profiles     string
}

// Enhancer expands short user text into the detailed descriptions the image
// model works best with. Every method is a single text-generation call with
// no retries.
type Enhancer struct {
	model  Model
	logger *slog.Logger
}

func NewEnhancer(model Model, logger *slog.Logger) *Enhancer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Enhancer{model: model, logger: logger}
}

// EnhanceProfile rewrites a member's description from their photo.
func (e *Enhancer) EnhanceProfile(ctx context.Context, member Profile) (string, error) {
	prompt := fmt.Sprintf(profilePrompt, orNA(member.Description))
	images := []gemini.ImageInput{{Data: member.Photo, MimeType: member.PhotoMime}}

	description, err := e.model.GenerateText(ctx, prompt, images)
	if err != nil {
		return "", fmt.Errorf("enhance profile: %w", err)
	}
	e.logger.Debug("enhanced profile description", "member", member.Name, "chars", len(description))
	return description, nil
}

// EnhanceScene expands a scene instruction into a detailed content-only
// description of what appears on the card.
func (e *Enhancer) EnhanceScene(ctx context.Context, sc SceneContext) (string, error) {
	prompt := fmt.Sprintf(scenePrompt,
		orNA(sc.Instructions), orNA(sc.Constraints), orNA(sc.Style), orNA(sc.Profiles))

	description, err := e.model.GenerateText(ctx, prompt, nil)
	if err != nil {
		return "", fmt.Errorf("enhance scene: %w", err)
	}
	return description, nil
}

// EnhanceStyle expands a style instruction into a detailed rendering-only
// style guide.
func (e *Enhancer) EnhanceStyle(ctx context.Context, sc StyleContext) (string, error) {
	prompt := fmt.Sprintf(stylePrompt,
		orNA(sc.Instructions), orNA(sc.Scene), orNA(sc.Profiles))

	description, err := e.model.GenerateText(ctx, prompt, nil)
	if err != nil {
		return "", fmt.Errorf("enhance style: %w", err)
	}
	return description, nil
}

func orNA(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "N/A"
	}
	return s
}
