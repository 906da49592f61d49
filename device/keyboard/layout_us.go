package keyboard

const (
	runeBackspace = '\b'
	runeEscape    = 0x1b
	runeDelete    = 0x7f
)

// us104Keys holds the unshifted and shifted characters produced by each key
// of the US 104-key layout. Keys without an entry do not produce characters.
var us104Keys = [keyCount][2]rune{
	KeyEscape:       {runeEscape, runeEscape},
	KeyBacktick:     {'`', '~'},
	Key1:            {'1', '!'},
	Key2:            {'2', '@'},
	Key3:            {'3', '#'},
	Key4:            {'4', '$'},
	Key5:            {'5', '%'},
	Key6:            {'6', '^'},
	Key7:            {'7', '&'},
	Key8:            {'8', '*'},
	Key9:            {'9', '('},
	Key0:            {'0', ')'},
	KeyMinus:        {'-', '_'},
	KeyEquals:       {'=', '+'},
	KeyBackspace:    {runeBackspace, runeBackspace},
	KeyTab:          {'\t', '\t'},
	KeyQ:            {'q', 'Q'},
	KeyW:            {'w', 'W'},
	KeyE:            {'e', 'E'},
	KeyR:            {'r', 'R'},
	KeyT:            {'t', 'T'},
	KeyY:            {'y', 'Y'},
	KeyU:            {'u', 'U'},
	KeyI:            {'i', 'I'},
	KeyO:            {'o', 'O'},
	KeyP:            {'p', 'P'},
	KeyLBracket:     {'[', '{'},
	KeyRBracket:     {']', '}'},
	KeyBackslash:    {'\\', '|'},
	KeyA:            {'a', 'A'},
	KeyS:            {'s', 'S'},
	KeyD:            {'d', 'D'},
	KeyF:            {'f', 'F'},
	KeyG:            {'g', 'G'},
	KeyH:            {'h', 'H'},
	KeyJ:            {'j', 'J'},
	KeyK:            {'k', 'K'},
	KeyL:            {'l', 'L'},
	KeySemicolon:    {';', ':'},
	KeyQuote:        {'\'', '"'},
	KeyEnter:        {'\n', '\n'},
	KeyZ:            {'z', 'Z'},
	KeyX:            {'x', 'X'},
	KeyC:            {'c', 'C'},
	KeyV:            {'v', 'V'},
	KeyB:            {'b', 'B'},
	KeyN:            {'n', 'N'},
	KeyM:            {'m', 'M'},
	KeyComma:        {',', '<'},
	KeyPeriod:       {'.', '>'},
	KeySlash:        {'/', '?'},
	KeySpace:        {' ', ' '},
	KeyDelete:       {runeDelete, runeDelete},
	KeyNumpadSlash:  {'/', '/'},
	KeyNumpadStar:   {'*', '*'},
	KeyNumpadMinus:  {'-', '-'},
	KeyNumpadPlus:   {'+', '+'},
	KeyNumpadEnter:  {'\n', '\n'},
	KeyNumpadPeriod: {'.', '.'},
	KeyNumpad0:      {'0', '0'},
	KeyNumpad1:      {'1', '1'},
	KeyNumpad2:      {'2', '2'},
	KeyNumpad3:      {'3', '3'},
	KeyNumpad4:      {'4', '4'},
	KeyNumpad5:      {'5', '5'},
	KeyNumpad6:      {'6', '6'},
	KeyNumpad7:      {'7', '7'},
	KeyNumpad8:      {'8', '8'},
	KeyNumpad9:      {'9', '9'},
}

// numpadNavKeys maps the numeric keypad keys to the navigation keys they act
// as while num lock is off.
var numpadNavKeys = [keyCount]KeyCode{
	KeyNumpad0:      KeyInsert,
	KeyNumpad1:      KeyEnd,
	KeyNumpad2:      KeyArrowDown,
	KeyNumpad3:      KeyPageDown,
	KeyNumpad4:      KeyArrowLeft,
	KeyNumpad5:      KeyNumpad5,
	KeyNumpad6:      KeyArrowRight,
	KeyNumpad7:      KeyHome,
	KeyNumpad8:      KeyArrowUp,
	KeyNumpad9:      KeyPageUp,
	KeyNumpadPeriod: KeyDelete,
}

// mapUS104 translates a pressed key to a character or a raw key according to
// the US 104-key layout and the current modifier state.
func mapUS104(code KeyCode, mods *modifiers) DecodedKey {
	if mods.numLockOff {
		switch nav := numpadNavKeys[code]; nav {
		case KeyUnknown:
		case KeyDelete:
			return DecodedKey{Rune: runeDelete, IsRune: true}
		default:
			return DecodedKey{Raw: nav}
		}
	}

	chars := us104Keys[code]
	if chars[0] == 0 {
		return DecodedKey{Raw: code}
	}

	shifted := mods.shifted()
	if chars[0] >= 'a' && chars[0] <= 'z' && mods.capsLock {
		shifted = !shifted
	}

	if shifted {
		return DecodedKey{Rune: chars[1], IsRune: true}
	}
	return DecodedKey{Rune: chars[0], IsRune: true}
}
