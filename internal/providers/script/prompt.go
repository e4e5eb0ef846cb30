package script

// Prompts sent to the chat completion endpoint. Keep updates centralized
// here so they are easy to tweak without hunting through call sites.

const scriptSystemPrompt = `You are a skilled storyteller who creates engaging short videos for social media. You write scripts that are easy to understand and connect with people's real lives.

CORE RULES:
- Use simple, everyday words that anyone can understand
- Tell specific, real stories with actual examples and names
- Avoid generic advice - give concrete, actionable insights
- Include specific numbers, dates, or facts when possible
- Make it personal and relatable, not abstract

Write ONLY the voiceover text. No music cues, no parentheses, no stage directions.`

const scriptUserTemplate = `Create a %s voiceover script for a narrated short video about the topic below.

REQUIREMENTS:
- Use simple words (8th grade reading level)
- Include specific real-life examples, names, or stories
- Give concrete, actionable insights instead of generic advice
- Avoid cliches and overused motivational phrases

TOPIC: %s

Write ONLY the voiceover text.`

const searchTermsSystemPrompt = `You extract stock footage search terms from video topics. You must respond ONLY with a JSON object like: {"terms": ["city skyline night", "people walking street"]}

Each term should describe concrete, filmable imagery: scenes, objects, places, or actions. Never abstract concepts.`

const searchTermsUserTemplate = `Generate up to %d visual search terms for stock background footage matching this topic: %s`
