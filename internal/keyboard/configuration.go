// Package keyboard is the typed model of the hamster.yaml keyboard document:
// option groups, custom layouts, per-key swipe bindings and color schemes.
//
// A parsed *Configuration is an immutable snapshot. Consumers share it
// read-only; a Loader swaps in a fresh snapshot on reload.
package keyboard

import "strings"

// Configuration is the whole keyboard document.
type Configuration struct {
	General   GeneralConfiguration  `yaml:"general" json:"general"`
	Toolbar   ToolbarConfiguration  `yaml:"toolbar" json:"toolbar"`
	Keyboard  KeyboardConfiguration `yaml:"keyboard" json:"keyboard"`
	Rime      RimeConfiguration     `yaml:"rime" json:"rime"`
	Swipe     SwipeConfiguration    `yaml:"swipe" json:"swipe"`
	Keyboards []Layout              `yaml:"keyboards,omitempty" json:"keyboards,omitempty"`
}

type GeneralConfiguration struct {
	EnableAppleCloud bool     `yaml:"enableAppleCloud" json:"enableAppleCloud"`
	RegexOnCopyFile  []string `yaml:"regexOnCopyFile,omitempty" json:"regexOnCopyFile,omitempty"`
}

type ToolbarConfiguration struct {
	EnableToolbar                 bool    `yaml:"enableToolbar" json:"enableToolbar"`
	DisplayAppIconButton          bool    `yaml:"displayAppIconButton" json:"displayAppIconButton"`
	DisplayKeyboardDismissButton  bool    `yaml:"displayKeyboardDismissButton" json:"displayKeyboardDismissButton"`
	HeightOfToolbar               float64 `yaml:"heightOfToolbar" json:"heightOfToolbar"`
	HeightOfCodingArea            float64 `yaml:"heightOfCodingArea" json:"heightOfCodingArea"`
	CodingAreaFontSize            float64 `yaml:"codingAreaFontSize" json:"codingAreaFontSize"`
	CandidateWordFontSize         float64 `yaml:"candidateWordFontSize" json:"candidateWordFontSize"`
	CandidateCommentFontSize      float64 `yaml:"candidateCommentFontSize" json:"candidateCommentFontSize"`
	DisplayIndexOfCandidateWord   bool    `yaml:"displayIndexOfCandidateWord" json:"displayIndexOfCandidateWord"`
	DisplayCommentOfCandidateWord bool    `yaml:"displayCommentOfCandidateWord" json:"displayCommentOfCandidateWord"`
}

// KeyboardConfiguration holds layout selection, feedback and button options.
type KeyboardConfiguration struct {
	// UseKeyboardType is chinese, chineseNineGrid, alphabetic, numericNineGrid or custom(name).
	UseKeyboardType string `yaml:"useKeyboardType" json:"useKeyboardType"`

	DisableSwipeLabel                  bool `yaml:"disableSwipeLabel" json:"disableSwipeLabel"`
	SwipeLabelUpAndDownIrregularLayout bool `yaml:"swipeLabelUpAndDownIrregularLayout" json:"swipeLabelUpAndDownIrregularLayout"`
	SwipeLabelUpAndDownLayout          bool `yaml:"swipeLabelUpAndDownLayout" json:"swipeLabelUpAndDownLayout"`
	UpSwipeOnLeft                      bool `yaml:"upSwipeOnLeft" json:"upSwipeOnLeft"`

	DisplayButtonBubbles    bool `yaml:"displayButtonBubbles" json:"displayButtonBubbles"`
	EnableKeySounds         bool `yaml:"enableKeySounds" json:"enableKeySounds"`
	EnableHapticFeedback    bool `yaml:"enableHapticFeedback" json:"enableHapticFeedback"`
	HapticFeedbackIntensity int  `yaml:"hapticFeedbackIntensity" json:"hapticFeedbackIntensity"`

	DisplaySemicolonButton      bool `yaml:"displaySemicolonButton" json:"displaySemicolonButton"`
	DisplayClassifySymbolButton bool `yaml:"displayClassifySymbolButton" json:"displayClassifySymbolButton"`

	DisplaySpaceLeftButton       bool   `yaml:"displaySpaceLeftButton" json:"displaySpaceLeftButton"`
	SpaceLeftButtonProcessByRIME bool   `yaml:"spaceLeftButtonProcessByRIME" json:"spaceLeftButtonProcessByRIME"`
	KeyValueOfSpaceLeftButton    string `yaml:"keyValueOfSpaceLeftButton" json:"keyValueOfSpaceLeftButton"`

	DisplaySpaceRightButton       bool   `yaml:"displaySpaceRightButton" json:"displaySpaceRightButton"`
	SpaceRightButtonProcessByRIME bool   `yaml:"spaceRightButtonProcessByRIME" json:"spaceRightButtonProcessByRIME"`
	KeyValueOfSpaceRightButton    string `yaml:"keyValueOfSpaceRightButton" json:"keyValueOfSpaceRightButton"`

	DisplayChineseEnglishSwitchButton               bool `yaml:"displayChineseEnglishSwitchButton" json:"displayChineseEnglishSwitchButton"`
	ChineseEnglishSwitchButtonIsOnLeftOfSpaceButton bool `yaml:"chineseEnglishSwitchButtonIsOnLeftOfSpaceButton" json:"chineseEnglishSwitchButtonIsOnLeftOfSpaceButton"`

	EnableNineGridOfNumericKeyboard                  bool     `yaml:"enableNineGridOfNumericKeyboard" json:"enableNineGridOfNumericKeyboard"`
	EnterDirectlyOnScreenByNineGridOfNumericKeyboard bool     `yaml:"enterDirectlyOnScreenByNineGridOfNumericKeyboard" json:"enterDirectlyOnScreenByNineGridOfNumericKeyboard"`
	SymbolsOfGridOfNumericKeyboard                   []string `yaml:"symbolsOfGridOfNumericKeyboard,omitempty" json:"symbolsOfGridOfNumericKeyboard,omitempty"`

	LockShiftState           bool `yaml:"lockShiftState" json:"lockShiftState"`
	EnableEmbeddedInputMode  bool `yaml:"enableEmbeddedInputMode" json:"enableEmbeddedInputMode"`
	WidthOfOneHandedKeyboard int  `yaml:"widthOfOneHandedKeyboard" json:"widthOfOneHandedKeyboard"`

	SymbolsOfCursorBack              []string `yaml:"symbolsOfCursorBack,omitempty" json:"symbolsOfCursorBack,omitempty"`
	SymbolsOfReturnToMainKeyboard    []string `yaml:"symbolsOfReturnToMainKeyboard,omitempty" json:"symbolsOfReturnToMainKeyboard,omitempty"`
	SymbolsOfChineseNineGridKeyboard []string `yaml:"symbolsOfChineseNineGridKeyboard,omitempty" json:"symbolsOfChineseNineGridKeyboard,omitempty"`
	PairsOfSymbols                   []string `yaml:"pairsOfSymbols,omitempty" json:"pairsOfSymbols,omitempty"`
	EnableSymbolKeyboard             bool     `yaml:"enableSymbolKeyboard" json:"enableSymbolKeyboard"`
	LockForSymbolKeyboard            bool     `yaml:"lockForSymbolKeyboard" json:"lockForSymbolKeyboard"`

	EnableLoadingTextForSpaceButton                       bool   `yaml:"enableLoadingTextForSpaceButton" json:"enableLoadingTextForSpaceButton"`
	LoadingTextForSpaceButton                             string `yaml:"loadingTextForSpaceButton" json:"loadingTextForSpaceButton"`
	LabelTextForSpaceButton                               string `yaml:"labelTextForSpaceButton" json:"labelTextForSpaceButton"`
	ShowCurrentInputSchemaNameForSpaceButton              bool   `yaml:"showCurrentInputSchemaNameForSpaceButton" json:"showCurrentInputSchemaNameForSpaceButton"`
	ShowCurrentInputSchemaNameOnLoadingTextForSpaceButton bool   `yaml:"showCurrentInputSchemaNameOnLoadingTextForSpaceButton" json:"showCurrentInputSchemaNameOnLoadingTextForSpaceButton"`

	EnableColorSchema      bool          `yaml:"enableColorSchema" json:"enableColorSchema"`
	UseColorSchemaForLight string        `yaml:"useColorSchemaForLight" json:"useColorSchemaForLight"`
	UseColorSchemaForDark  string        `yaml:"useColorSchemaForDark" json:"useColorSchemaForDark"`
	ColorSchemas           []ColorScheme `yaml:"colorSchemas,omitempty" json:"colorSchemas,omitempty"`
}

// RimeConfiguration holds engine-facing options.
type RimeConfiguration struct {
	MaximumNumberOfCandidateWords            int      `yaml:"maximumNumberOfCandidateWords" json:"maximumNumberOfCandidateWords"`
	KeyValueOfSwitchSimplifiedAndTraditional string   `yaml:"keyValueOfSwitchSimplifiedAndTraditional" json:"keyValueOfSwitchSimplifiedAndTraditional"`
	OverrideDictFiles                        bool     `yaml:"overrideDictFiles" json:"overrideDictFiles"`
	RegexOnOverrideDictFiles                 []string `yaml:"regexOnOverrideDictFiles,omitempty" json:"regexOnOverrideDictFiles,omitempty"`
	RegexOnCopyAppGroupDictFile              []string `yaml:"regexOnCopyAppGroupDictFile,omitempty" json:"regexOnCopyAppGroupDictFile,omitempty"`
}

// SwipeConfiguration holds gesture thresholds and the built-in keyboards' swipe bindings.
type SwipeConfiguration struct {
	SpaceDragSensitivity int     `yaml:"spaceDragSensitivity" json:"spaceDragSensitivity"`
	DistanceThreshold    float64 `yaml:"distanceThreshold" json:"distanceThreshold"`
	TangentThreshold     float64 `yaml:"tangentThreshold" json:"tangentThreshold"`
	// LongPressDelay is in seconds.
	LongPressDelay float64         `yaml:"longPressDelay" json:"longPressDelay"`
	KeyboardSwipe  []KeyboardSwipe `yaml:"keyboardSwipe,omitempty" json:"keyboardSwipe,omitempty"`
}

// KeyboardSwipe attaches swipe bindings to the keys of a built-in keyboard type.
type KeyboardSwipe struct {
	KeyboardType string `yaml:"keyboardType" json:"keyboardType"`
	Keys         []Key  `yaml:"keys,omitempty" json:"keys,omitempty"`
}

// Layout is a named custom keyboard.
type Layout struct {
	Name         string  `yaml:"name" json:"name"`
	RowHeight    float64 `yaml:"rowHeight,omitempty" json:"rowHeight,omitempty"`
	ButtonInsets Insets  `yaml:"buttonInsets,omitempty" json:"buttonInsets,omitempty"`
	Rows         []Row   `yaml:"rows,omitempty" json:"rows,omitempty"`
}

type Row struct {
	Keys []Key `yaml:"keys,omitempty" json:"keys,omitempty"`
}

// Key is a primary action plus at most one swipe binding per direction.
type Key struct {
	Action    Action         `yaml:"action" json:"action"`
	Width     Width          `yaml:"width,omitempty" json:"width,omitempty"`
	Label     Label          `yaml:"label,omitempty" json:"label,omitempty"`
	LongPress *Action        `yaml:"longPress,omitempty" json:"longPress,omitempty"`
	Swipe     []SwipeBinding `yaml:"swipe,omitempty" json:"swipe,omitempty"`
}

// Binding returns the swipe binding for d.
func (k *Key) Binding(d Direction) (*SwipeBinding, bool) {
	for i := range k.Swipe {
		if k.Swipe[i].Direction == d {
			return &k.Swipe[i], true
		}
	}
	return nil, false
}

// ColorScheme is a named palette. Unset colors are nil.
type ColorScheme struct {
	SchemaName string `yaml:"schemaName" json:"schemaName"`
	Name       string `yaml:"name,omitempty" json:"name,omitempty"`
	Author     string `yaml:"author,omitempty" json:"author,omitempty"`

	BackColor               *Color  `yaml:"back_color,omitempty" json:"back_color,omitempty"`
	ButtonBackColor         *Color  `yaml:"button_back_color,omitempty" json:"button_back_color,omitempty"`
	ButtonPressedBackColor  *Color  `yaml:"button_pressed_back_color,omitempty" json:"button_pressed_back_color,omitempty"`
	ButtonFrontColor        *Color  `yaml:"button_front_color,omitempty" json:"button_front_color,omitempty"`
	ButtonPressedFrontColor *Color  `yaml:"button_pressed_front_color,omitempty" json:"button_pressed_front_color,omitempty"`
	ButtonSwipeFrontColor   *Color  `yaml:"button_swipe_front_color,omitempty" json:"button_swipe_front_color,omitempty"`
	CornerRadius            float64 `yaml:"corner_radius,omitempty" json:"corner_radius,omitempty"`
	BorderColor             *Color  `yaml:"border_color,omitempty" json:"border_color,omitempty"`

	TextColor                 *Color `yaml:"text_color,omitempty" json:"text_color,omitempty"`
	HilitedTextColor          *Color `yaml:"hilited_text_color,omitempty" json:"hilited_text_color,omitempty"`
	HilitedBackColor          *Color `yaml:"hilited_back_color,omitempty" json:"hilited_back_color,omitempty"`
	HilitedCandidateTextColor *Color `yaml:"hilited_candidate_text_color,omitempty" json:"hilited_candidate_text_color,omitempty"`
	HilitedCandidateBackColor *Color `yaml:"hilited_candidate_back_color,omitempty" json:"hilited_candidate_back_color,omitempty"`
	HilitedCommentTextColor   *Color `yaml:"hilited_comment_text_color,omitempty" json:"hilited_comment_text_color,omitempty"`
	CandidateTextColor        *Color `yaml:"candidate_text_color,omitempty" json:"candidate_text_color,omitempty"`
	CommentTextColor          *Color `yaml:"comment_text_color,omitempty" json:"comment_text_color,omitempty"`
}

// Default returns the documented defaults for every optional field.
func Default() *Configuration {
	return &Configuration{
		Toolbar: ToolbarConfiguration{
			EnableToolbar:            true,
			HeightOfToolbar:          50,
			HeightOfCodingArea:       10,
			CodingAreaFontSize:       12,
			CandidateWordFontSize:    18,
			CandidateCommentFontSize: 12,
		},
		Keyboard: KeyboardConfiguration{
			UseKeyboardType:                 "chinese",
			DisplayButtonBubbles:            true,
			EnableKeySounds:                 true,
			HapticFeedbackIntensity:         3,
			SpaceLeftButtonProcessByRIME:    true,
			KeyValueOfSpaceLeftButton:       ",",
			SpaceRightButtonProcessByRIME:   true,
			KeyValueOfSpaceRightButton:      ".",
			EnableNineGridOfNumericKeyboard: true,

			EnterDirectlyOnScreenByNineGridOfNumericKeyboard: true,

			LockShiftState:                  true,
			WidthOfOneHandedKeyboard:        80,
			EnableSymbolKeyboard:            true,
			EnableLoadingTextForSpaceButton: true,
		},
		Rime: RimeConfiguration{
			MaximumNumberOfCandidateWords:            100,
			KeyValueOfSwitchSimplifiedAndTraditional: "simplified",
		},
		Swipe: SwipeConfiguration{
			SpaceDragSensitivity: 5,
			DistanceThreshold:    20,
			TangentThreshold:     0.577,
			LongPressDelay:       0.3,
		},
	}
}

// applyDefaults restores defaults for numeric options left at zero and
// drops empty lists so an encoded snapshot parses back to the same value.
func (c *Configuration) applyDefaults() {
	def := Default()

	if c.Rime.MaximumNumberOfCandidateWords <= 0 {
		c.Rime.MaximumNumberOfCandidateWords = def.Rime.MaximumNumberOfCandidateWords
	}
	if c.Rime.KeyValueOfSwitchSimplifiedAndTraditional == "" {
		c.Rime.KeyValueOfSwitchSimplifiedAndTraditional = def.Rime.KeyValueOfSwitchSimplifiedAndTraditional
	}
	if c.Swipe.SpaceDragSensitivity <= 0 {
		c.Swipe.SpaceDragSensitivity = def.Swipe.SpaceDragSensitivity
	}
	if c.Swipe.DistanceThreshold <= 0 {
		c.Swipe.DistanceThreshold = def.Swipe.DistanceThreshold
	}
	if c.Swipe.TangentThreshold <= 0 {
		c.Swipe.TangentThreshold = def.Swipe.TangentThreshold
	}
	if c.Swipe.LongPressDelay <= 0 {
		c.Swipe.LongPressDelay = def.Swipe.LongPressDelay
	}
	if c.Keyboard.UseKeyboardType == "" {
		c.Keyboard.UseKeyboardType = def.Keyboard.UseKeyboardType
	}

	c.General.RegexOnCopyFile = nilIfEmpty(c.General.RegexOnCopyFile)
	c.Rime.RegexOnOverrideDictFiles = nilIfEmpty(c.Rime.RegexOnOverrideDictFiles)
	c.Rime.RegexOnCopyAppGroupDictFile = nilIfEmpty(c.Rime.RegexOnCopyAppGroupDictFile)
	k := &c.Keyboard
	k.SymbolsOfGridOfNumericKeyboard = nilIfEmpty(k.SymbolsOfGridOfNumericKeyboard)
	k.SymbolsOfCursorBack = nilIfEmpty(k.SymbolsOfCursorBack)
	k.SymbolsOfReturnToMainKeyboard = nilIfEmpty(k.SymbolsOfReturnToMainKeyboard)
	k.SymbolsOfChineseNineGridKeyboard = nilIfEmpty(k.SymbolsOfChineseNineGridKeyboard)
	k.PairsOfSymbols = nilIfEmpty(k.PairsOfSymbols)
	if len(k.ColorSchemas) == 0 {
		k.ColorSchemas = nil
	}

	if len(c.Swipe.KeyboardSwipe) == 0 {
		c.Swipe.KeyboardSwipe = nil
	}
	for i := range c.Swipe.KeyboardSwipe {
		c.Swipe.KeyboardSwipe[i].Keys = normalizeKeys(c.Swipe.KeyboardSwipe[i].Keys)
	}

	if len(c.Keyboards) == 0 {
		c.Keyboards = nil
	}
	for i := range c.Keyboards {
		l := &c.Keyboards[i]
		if len(l.Rows) == 0 {
			l.Rows = nil
		}
		for j := range l.Rows {
			l.Rows[j].Keys = normalizeKeys(l.Rows[j].Keys)
		}
	}
}

func normalizeKeys(keys []Key) []Key {
	if len(keys) == 0 {
		return nil
	}
	for i := range keys {
		if len(keys[i].Swipe) == 0 {
			keys[i].Swipe = nil
		}
	}
	return keys
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

// Layout returns the custom layout called name.
func (c *Configuration) Layout(name string) (*Layout, bool) {
	for i := range c.Keyboards {
		if c.Keyboards[i].Name == name {
			return &c.Keyboards[i], true
		}
	}
	return nil, false
}

// KeyboardSwipe returns the swipe bindings declared for a built-in keyboard type.
func (c *Configuration) KeyboardSwipe(keyboardType string) (*KeyboardSwipe, bool) {
	for i := range c.Swipe.KeyboardSwipe {
		if c.Swipe.KeyboardSwipe[i].KeyboardType == keyboardType {
			return &c.Swipe.KeyboardSwipe[i], true
		}
	}
	return nil, false
}

// ActiveLayoutName resolves useKeyboardType, unwrapping custom(name).
func (c *Configuration) ActiveLayoutName() string {
	t := c.Keyboard.UseKeyboardType
	if name, ok := strings.CutPrefix(t, "custom("); ok && strings.HasSuffix(name, ")") {
		return strings.TrimSuffix(name, ")")
	}
	return t
}

// LookupKey finds the key whose primary action is a, first in the custom
// layout called layout, then in the swipe bindings of keyboard type layout.
// The returned Key belongs to the snapshot and must not be modified.
func (c *Configuration) LookupKey(layout string, a Action) (*Key, bool) {
	if l, ok := c.Layout(layout); ok {
		for i := range l.Rows {
			for j := range l.Rows[i].Keys {
				if l.Rows[i].Keys[j].Action == a {
					return &l.Rows[i].Keys[j], true
				}
			}
		}
	}
	if ks, ok := c.KeyboardSwipe(layout); ok {
		for i := range ks.Keys {
			if ks.Keys[i].Action == a {
				return &ks.Keys[i], true
			}
		}
	}
	return nil, false
}

// ColorScheme returns the scheme whose schemaName is name.
func (c *Configuration) ColorScheme(name string) (*ColorScheme, bool) {
	for i := range c.Keyboard.ColorSchemas {
		if c.Keyboard.ColorSchemas[i].SchemaName == name {
			return &c.Keyboard.ColorSchemas[i], true
		}
	}
	return nil, false
}

// ActiveColorScheme returns the scheme selected for the light or dark
// appearance, or false when color schemes are disabled.
func (c *Configuration) ActiveColorScheme(dark bool) (*ColorScheme, bool) {
	if !c.Keyboard.EnableColorSchema {
		return nil, false
	}
	name := c.Keyboard.UseColorSchemaForLight
	if dark {
		name = c.Keyboard.UseColorSchemaForDark
	}
	return c.ColorScheme(name)
}
