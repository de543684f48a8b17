package greet

// The catalogs below are the fixed option sets for the randomized parts of a
// greeting. Draws are uniform; see Composer.pick.

// firstHereAwards decorate the "first one here" clause.
var firstHereAwards = []string{
	":first_place:",
	":trophy:",
	":medal:",
	":crown:",
	":military_medal:",
}

// gifts are rendered gift texts. Anti-repetition within a single greeting
// compares these literal strings against the text composed so far.
var gifts = []string{
	"a shiny pebble :gem:",
	"a fresh sunflower seed :sunflower:",
	"a twig for your nest :herb:",
	"a juicy berry :strawberry:",
	"a soft feather :feather:",
	"a bottle cap I found :yellow_circle:",
	"a little song :musical_note:",
	"a pretty leaf :fallen_leaf:",
	"a bit of shiny foil :sparkles:",
	"a warm hug :hugging:",
}

// affectionClosers follow a multi-gift haul.
var affectionClosers = []string{
	"You deserve it! :bird:",
	"Because you're special to me! :sparkling_heart:",
	"Don't tell the others! :shushing_face:",
	"I've been saving them just for you! :blush:",
}

// weekendPrompts are the Monday conversation starters.
var weekendPrompts = []string{
	"How was your weekend?",
	"Did you get up to anything fun this weekend?",
	"I hope you had a restful weekend! What did you get up to?",
	"Tell me about your weekend!",
}
