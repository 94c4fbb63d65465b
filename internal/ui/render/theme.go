package render

import "github.com/gdamore/tcell/v2"

// ColorTheme defines application colors.
type ColorTheme struct {
	Background      tcell.Color
	Foreground      tcell.Color
	ParentFg        tcell.Color
	HiddenFg        tcell.Color
	ParentActiveBg  tcell.Color
	ParentActiveFg  tcell.Color
	SelectionBg     tcell.Color
	SelectionFg     tcell.Color
	DirectoryFg     tcell.Color
	SymlinkFg       tcell.Color
	DanglingFg      tcell.Color
	FileFg          tcell.Color
	MarkFg          tcell.Color
	FooterBg        tcell.Color
	FooterFg        tcell.Color
	PreviewBg       tcell.Color
	PreviewFg       tcell.Color
	PreviewTitleFg  tcell.Color
	FieldLabelFg    tcell.Color
	ErrorFg         tcell.Color
	PromptFg        tcell.Color
	FlashBg         tcell.Color
	SearchMatchBg   tcell.Color
	SearchMatchFg   tcell.Color
}

// GetColorTheme returns the default color scheme.
func GetColorTheme() ColorTheme {
	return ColorTheme{
		Background:     tcell.ColorDefault,
		Foreground:     tcell.ColorDefault,
		ParentFg:       tcell.ColorDefault,
		HiddenFg:       tcell.ColorLightSlateGray,
		ParentActiveBg: tcell.Color240,
		ParentActiveFg: tcell.ColorWhite,
		SelectionBg:    tcell.Color33,
		SelectionFg:    tcell.ColorWhite,
		DirectoryFg:    tcell.Color33,
		SymlinkFg:      tcell.Color51,
		DanglingFg:     tcell.Color160,
		FileFg:         tcell.ColorDefault,
		MarkFg:         tcell.Color220,
		FooterBg:       tcell.ColorDefault,
		FooterFg:       tcell.ColorDefault,
		PreviewBg:      tcell.ColorDefault,
		PreviewFg:      tcell.ColorDefault,
		PreviewTitleFg: tcell.Color44,
		FieldLabelFg:   tcell.Color245,
		ErrorFg:        tcell.Color196,
		PromptFg:       tcell.Color220,
		FlashBg:        tcell.ColorGreen,
		SearchMatchBg:  tcell.Color58,
		SearchMatchFg:  tcell.ColorWhite,
	}
}
