package ansi

import "strings"

// namedColors maps xterm color names to palette colors. Each name is
// registered in snake_case plus hyphenated and compact variants. The map is
// built once at init and read-only afterwards.
var namedColors map[string]Color

// NamedColor looks up a color by exact name.
func NamedColor(name string) (Color, bool) {
	c, ok := namedColors[name]
	return c, ok
}

func colorFromIndex(index uint8) Color {
	if index < 16 {
		return Ansi16{Index: index}
	}
	return Xterm256{Index: index}
}

func addName(name string, index uint8) {
	namedColors[name] = colorFromIndex(index)

	hyphen := strings.ReplaceAll(name, "_", "-")
	compact := strings.NewReplacer("_", "", "-", "").Replace(name)

	if hyphen != name {
		namedColors[hyphen] = colorFromIndex(index)
	}
	if compact != name {
		namedColors[compact] = colorFromIndex(index)
	}
}

func init() {
	namedColors = make(map[string]Color, 512)

	addName("black", 0)
	addName("red", 1)
	addName("green", 2)
	addName("yellow", 3)
	addName("blue", 4)
	addName("magenta", 5)
	addName("cyan", 6)
	addName("white", 7)
	addName("bright_black", 8)
	addName("bright_red", 9)
	addName("bright_green", 10)
	addName("bright_yellow", 11)
	addName("bright_blue", 12)
	addName("bright_magenta", 13)
	addName("bright_cyan", 14)
	addName("bright_white", 15)
	addName("grey0", 16)
	addName("gray0", 16)
	addName("navy_blue", 17)
	addName("dark_blue", 18)
	addName("blue3", 20)
	addName("blue1", 21)
	addName("dark_green", 22)
	addName("deep_sky_blue4", 25)
	addName("dodger_blue3", 26)
	addName("dodger_blue2", 27)
	addName("green4", 28)
	addName("spring_green4", 29)
	addName("turquoise4", 30)
	addName("deep_sky_blue3", 32)
	addName("dodger_blue1", 33)
	addName("green3", 40)
	addName("spring_green3", 41)
	addName("dark_cyan", 36)
	addName("light_sea_green", 37)
	addName("deep_sky_blue2", 38)
	addName("deep_sky_blue1", 39)
	addName("spring_green2", 47)
	addName("cyan3", 43)
	addName("dark_turquoise", 44)
	addName("turquoise2", 45)
	addName("green1", 46)
	addName("spring_green1", 48)
	addName("medium_spring_green", 49)
	addName("cyan2", 50)
	addName("cyan1", 51)
	addName("dark_red", 88)
	addName("deep_pink4", 125)
	addName("purple4", 55)
	addName("purple3", 56)
	addName("blue_violet", 57)
	addName("orange4", 94)
	addName("grey37", 59)
	addName("gray37", 59)
	addName("medium_purple4", 60)
	addName("slate_blue3", 62)
	addName("royal_blue1", 63)
	addName("chartreuse4", 64)
	addName("dark_sea_green4", 71)
	addName("pale_turquoise4", 66)
	addName("steel_blue", 67)
	addName("steel_blue3", 68)
	addName("cornflower_blue", 69)
	addName("chartreuse3", 76)
	addName("cadet_blue", 73)
	addName("sky_blue3", 74)
	addName("steel_blue1", 81)
	addName("pale_green3", 114)
	addName("sea_green3", 78)
	addName("aquamarine3", 79)
	addName("medium_turquoise", 80)
	addName("chartreuse2", 112)
	addName("sea_green2", 83)
	addName("sea_green1", 85)
	addName("aquamarine1", 122)
	addName("dark_slate_gray2", 87)
	addName("dark_magenta", 91)
	addName("dark_violet", 128)
	addName("purple", 129)
	addName("light_pink4", 95)
	addName("plum4", 96)
	addName("medium_purple3", 98)
	addName("slate_blue1", 99)
	addName("yellow4", 106)
	addName("wheat4", 101)
	addName("grey53", 102)
	addName("gray53", 102)
	addName("light_slate_grey", 103)
	addName("light_slate_gray", 103)
	addName("medium_purple", 104)
	addName("light_slate_blue", 105)
	addName("dark_olive_green3", 149)
	addName("dark_sea_green", 108)
	addName("light_sky_blue3", 110)
	addName("sky_blue2", 111)
	addName("dark_sea_green3", 150)
	addName("dark_slate_gray3", 116)
	addName("sky_blue1", 117)
	addName("chartreuse1", 118)
	addName("light_green", 120)
	addName("pale_green1", 156)
	addName("dark_slate_gray1", 123)
	addName("red3", 160)
	addName("medium_violet_red", 126)
	addName("magenta3", 164)
	addName("dark_orange3", 166)
	addName("indian_red", 167)
	addName("hot_pink3", 168)
	addName("medium_orchid3", 133)
	addName("medium_orchid", 134)
	addName("medium_purple2", 140)
	addName("dark_goldenrod", 136)
	addName("light_salmon3", 173)
	addName("rosy_brown", 138)
	addName("grey63", 139)
	addName("gray63", 139)
	addName("medium_purple1", 141)
	addName("gold3", 178)
	addName("dark_khaki", 143)
	addName("navajo_white3", 144)
	addName("grey69", 145)
	addName("gray69", 145)
	addName("light_steel_blue3", 146)
	addName("light_steel_blue", 147)
	addName("yellow3", 184)
	addName("dark_sea_green2", 157)
	addName("light_cyan3", 152)
	addName("light_sky_blue1", 153)
	addName("green_yellow", 154)
	addName("dark_olive_green2", 155)
	addName("dark_sea_green1", 193)
	addName("pale_turquoise1", 159)
	addName("deep_pink3", 162)
	addName("magenta2", 200)
	addName("hot_pink2", 169)
	addName("orchid", 170)
	addName("medium_orchid1", 207)
	addName("orange3", 172)
	addName("light_pink3", 174)
	addName("pink3", 175)
	addName("plum3", 176)
	addName("violet", 177)
	addName("light_goldenrod3", 179)
	addName("tan", 180)
	addName("misty_rose3", 181)
	addName("thistle3", 182)
	addName("plum2", 183)
	addName("khaki3", 185)
	addName("light_goldenrod2", 222)
	addName("light_yellow3", 187)
	addName("grey84", 188)
	addName("gray84", 188)
	addName("light_steel_blue1", 189)
	addName("yellow2", 190)
	addName("dark_olive_green1", 192)
	addName("honeydew2", 194)
	addName("light_cyan1", 195)
	addName("red1", 196)
	addName("deep_pink2", 197)
	addName("deep_pink1", 199)
	addName("magenta1", 201)
	addName("orange_red1", 202)
	addName("indian_red1", 204)
	addName("hot_pink", 206)
	addName("dark_orange", 208)
	addName("salmon1", 209)
	addName("light_coral", 210)
	addName("pale_violet_red1", 211)
	addName("orchid2", 212)
	addName("orchid1", 213)
	addName("orange1", 214)
	addName("sandy_brown", 215)
	addName("light_salmon1", 216)
	addName("light_pink1", 217)
	addName("pink1", 218)
	addName("plum1", 219)
	addName("gold1", 220)
	addName("navajo_white1", 223)
	addName("misty_rose1", 224)
	addName("thistle1", 225)
	addName("yellow1", 226)
	addName("light_goldenrod1", 227)
	addName("khaki1", 228)
	addName("wheat1", 229)
	addName("cornsilk1", 230)
	addName("grey100", 231)
	addName("gray100", 231)
	addName("grey3", 232)
	addName("gray3", 232)
	addName("grey7", 233)
	addName("gray7", 233)
	addName("grey11", 234)
	addName("gray11", 234)
	addName("grey15", 235)
	addName("gray15", 235)
	addName("grey19", 236)
	addName("gray19", 236)
	addName("grey23", 237)
	addName("gray23", 237)
	addName("grey27", 238)
	addName("gray27", 238)
	addName("grey30", 239)
	addName("gray30", 239)
	addName("grey35", 240)
	addName("gray35", 240)
	addName("grey39", 241)
	addName("gray39", 241)
	addName("grey42", 242)
	addName("gray42", 242)
	addName("grey46", 243)
	addName("gray46", 243)
	addName("grey50", 244)
	addName("gray50", 244)
	addName("grey54", 245)
	addName("gray54", 245)
	addName("grey58", 246)
	addName("gray58", 246)
	addName("grey62", 247)
	addName("gray62", 247)
	addName("grey66", 248)
	addName("gray66", 248)
	addName("grey70", 249)
	addName("gray70", 249)
	addName("grey74", 250)
	addName("gray74", 250)
	addName("grey78", 251)
	addName("gray78", 251)
	addName("grey82", 252)
	addName("gray82", 252)
	addName("grey85", 253)
	addName("gray85", 253)
	addName("grey89", 254)
	addName("gray89", 254)
	addName("grey93", 255)
	addName("gray93", 255)
}
