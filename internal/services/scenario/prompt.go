package scenario

import (
	"fmt"
	"strings"

	"github.com/ternarybob/gamemaster/internal/models"
)

// MarketDataPrefix labels the snapshot turn so the model can tell data from instruction
const MarketDataPrefix = "Market Data: "

// SystemInstruction is the fixed first turn of every conversation. It is the
// natural-language contract for the scenario JSON object.
var SystemInstruction = fmt.Sprintf(
	"You are the game master of a simulated stock trading market. "+
		"Read the market data you are given and reply with exactly one scenario as a single JSON object, "+
		"with no prose, markdown or code fences around it. The object has these keys:\n"+
		"- \"headline\": the news headline for the scenario, %d to %d characters.\n"+
		"- \"summary\": a short description of the scenario and what it entails, %d to %d characters.\n"+
		"- \"sector\": the stock sector affected, written in ALL CAPS, chosen from the sectors present in the market data.\n"+
		"- \"magnitude\": a number from %g to %g giving the strength of the effect on that sector; "+
		"values toward %g push prices down and values toward %g push prices up.\n"+
		"- \"duration\": how long the scenario affects the market, an integer number of seconds from %d to %d.\n"+
		"- \"sentiment\": one of \"%s\", \"%s\" or \"%s\".\n"+
		"Do not repeat a headline you have already produced in this conversation.",
	models.HeadlineMinLen, models.HeadlineMaxLen,
	models.SummaryMinLen, models.SummaryMaxLen,
	models.MagnitudeMin, models.MagnitudeMax, models.MagnitudeMin, models.MagnitudeMax,
	models.DurationMin, models.DurationMax,
	models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral,
)

// correctionIntent asks the model to replace a reply that failed validation
func correctionIntent(intent string, cause error) string {
	var b strings.Builder
	b.WriteString("Your previous reply was rejected: ")
	b.WriteString(cause.Error())
	b.WriteString(". Reply again with one JSON object that follows the format exactly. ")
	b.WriteString(intent)
	return b.String()
}
