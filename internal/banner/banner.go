package banner

import (
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

// Print writes the startup banner for the serve command
func Print(version string) {
	ptermLogo, _ := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithRGB("EZ", pterm.NewRGB(0, 122, 204)),
		putils.LettersFromStringWithRGB("vis", pterm.NewRGB(90, 90, 90))).
		Srender()

	pterm.DefaultCenter.Print(ptermLogo)

	pterm.DefaultCenter.Print(
		pterm.DefaultHeader.
			WithFullWidth().
			WithBackgroundStyle(pterm.NewStyle(pterm.BgBlue)).
			WithMargin(5).
			Sprint(pterm.White("ezvis - EZproxy access log analytics")),
	)

	pterm.Info.Println(
		"Hourly traffic, bandwidth, hosts, countries and errors from EZproxy logs." +
			"\nVersion " + version + ".",
	)
}
