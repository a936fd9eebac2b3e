package compose

import (
	"fmt"
	"strings"

	"github.com/prashanttc/tweetAut/internal/topics"
)

const noDashesRule = "Do not use the dash (-) or double quote (\") characters anywhere; use commas or colons instead."

const techSystemPrompt = "You are a final-year computer science student who tweets thoughtful, plain-spoken reactions to tech news."

const shitpostSystemPrompt = "You are a sharp Gen Z tweeter with quiet attitude. You write short, casual, slightly ironic observations."

const threadSystemPrompt = "You write casually smart Twitter threads in a chill, honest voice."

const proposeSystemPrompt = "You pick scroll-stopping Twitter topics about social dynamics, internet culture and human behavior."

const rankSystemPrompt = "You select the most tweetable topic from a list, favouring novelty and variety."

func techPrompt(t topics.Topic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write one tweet reacting to this topic: %q\n", t.RawTopic)
	if t.ContextSummary != "" {
		fmt.Fprintf(&b, "Context: %s\n", t.ContextSummary)
	}
	if t.PersonaAngle != "" {
		fmt.Fprintf(&b, "Angle to take: %s\n", t.PersonaAngle)
	}
	b.WriteString("\nShare one genuine insight or concern in simple language. No hashtags, no emojis, no filler.\n")
	b.WriteString("Keep it under 280 characters. " + noDashesRule + "\n")
	b.WriteString("Respond with ONLY the tweet text.")
	return b.String()
}

func shitpostPrompt(t topics.Topic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write one tweet reacting to this topic: %q\n", t.RawTopic)
	if t.PersonaAngle != "" {
		fmt.Fprintf(&b, "Angle to take: %s\n", t.PersonaAngle)
	}
	b.WriteString("\nMake it feel like a passing thought while scrolling: a little witty, a little judging, relatable.\n")
	b.WriteString("At most two emojis. No hashtags. Keep it under 280 characters. " + noDashesRule + "\n")
	b.WriteString("Respond with ONLY the tweet text.")
	return b.String()
}

func threadPrompt(topic string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a Twitter thread of %d to %d tweets on this topic: %q\n\n", MinThreadSegments+1, MaxThreadSegments, topic)
	b.WriteString("Each tweet must be under 280 characters. The first tweet hooks attention, the middle ones expand with real takes, the last one lands the point.\n")
	b.WriteString("One or two emojis across the whole thread. No hashtags. " + noDashesRule + "\n")
	b.WriteString("Put each tweet on its own line, numbered 1., 2., 3. and so on. Respond with ONLY the thread.")
	return b.String()
}

func proposePrompt() string {
	return "Give ONE thought-provoking topic that feels timely or weird, something worth unpacking in a thread. " +
		"Avoid cliches like AI, mental health or motivation. No hashtags, no quotes. Respond with ONLY the topic."
}

func rankPrompt(titles []string) string {
	var b strings.Builder
	b.WriteString("Pick the most tweetable title from this list. Consider virality, emotion, novelty and curiosity.\n\nTitles:\n")
	for i, t := range titles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}
	b.WriteString("\nReturn only the number of the best title (for example \"3\"). ")
	b.WriteString("Optionally add a second line with a one-sentence angle to take.")
	return b.String()
}
