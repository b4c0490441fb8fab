package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// ListingDark is the style used for listings: white opcodes, teal
// registers, pink numbers and gold labels.
var ListingDark = styles.Register(chroma.MustNewStyle("cflow-dark", chroma.StyleEntries{
	chroma.Text:           "#FFFFFF",
	chroma.Background:     "bg:#1e1e1e",
	chroma.Comment:        "#8A8A8A",
	chroma.CommentPreproc: "#8A8A8A",

	chroma.Keyword:       "#FFFFFF",
	chroma.KeywordPseudo: "#FFFFFF",
	chroma.Name:          "#7C9C9D",
	chroma.NameBuiltin:   "#7C9C9D",
	chroma.NameVariable:  "#7C9C9D",

	chroma.LiteralNumber:        "#FF5F87",
	chroma.LiteralNumberHex:     "#FF5F87",
	chroma.LiteralNumberBin:     "#FF5F87",
	chroma.LiteralNumberInteger: "#FF5F87",

	chroma.NameLabel:    "#FFD700",
	chroma.NameFunction: "#FFFFFF",

	chroma.Operator:    "#FFFFFF",
	chroma.Punctuation: "#FFFFFF",
	chroma.String:      "#EACD53",
}))
