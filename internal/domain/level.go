package domain

type Level string

func (l Level) String() string {
	return string(l)
}

const (
	LevelCategory    Level = "category"    // Top-level categories on the root page
	LevelSubcategory Level = "subcategory" // Subcategories listed on a category page
	LevelItem        Level = "item"        // Instruments listed on a subcategory page
)

var Levels = []Level{
	LevelCategory,
	LevelSubcategory,
	LevelItem,
}

// Child returns the level listed on the pages linked from this level.
func (l Level) Child() Level {
	switch l {
	case LevelCategory:
		return LevelSubcategory
	case LevelSubcategory:
		return LevelItem
	default:
		return ""
	}
}

func (l Level) GetDisplayName() string {
	switch l {
	case LevelCategory:
		return "Categories"
	case LevelSubcategory:
		return "Subcategories"
	case LevelItem:
		return "Instruments"
	default:
		return "Unknown"
	}
}
