package recipe

import "strings"

// staticIngredients is the last-resort table used when stored rows are
// absent and generative completion is unavailable.
var staticIngredients = map[string][]string{
	"Upma with vegetables":                  {"semolina", "carrots", "peas", "onion", "mustard seeds", "green chili"},
	"Oats with banana and nuts":             {"oats", "banana", "almonds", "milk", "honey"},
	"Protein shake with banana":             {"protein powder", "banana", "milk", "peanut butter"},
	"Paneer wrap with veggies":              {"paneer", "whole wheat wrap", "capsicum", "onion", "yogurt sauce"},
	"Chicken salad with whole grain bread":  {"chicken breast", "lettuce", "tomato", "whole grain bread", "olive oil"},
	"Chicken curry with brown rice":         {"chicken", "onion", "tomato", "spices", "brown rice"},
	"Vegetable biryani":                     {"basmati rice", "carrot", "peas", "beans", "biryani masala", "onion"},
	"Chapati with dal and mixed vegetables": {"whole wheat flour", "lentils", "carrots", "beans", "spices"},
	"Turkey chili":                          {"turkey", "kidney beans", "onion", "tomato", "chili powder"},
	"Fruit smoothie":                        {"banana", "berries", "milk", "honey"},
	"Boiled eggs":                           {"eggs", "salt"},
	"Banana and peanut butter":              {"banana", "peanut butter"},
	"Nuts and dry fruits":                   {"almonds", "cashews", "raisins", "dates"},
	"Baked fish with quinoa":                {"fish fillet", "quinoa", "lemon", "garlic", "olive oil"},
	"Brown rice with spinach curry":         {"brown rice", "spinach", "onion", "tomato", "spices"},
	"Egg sandwich with veggies":             {"eggs", "bread", "lettuce", "tomato", "cucumber", "mayonnaise"},
	"Grilled chicken with vegetables":       {"chicken breast", "zucchini", "bell pepper", "olive oil", "spices"},
	"Hummus with carrot sticks":             {"chickpeas", "tahini", "garlic", "olive oil", "lemon", "carrots"},
	"Lentil soup with whole grain bread":    {"lentils", "onion", "carrot", "celery", "spices", "whole grain bread"},
	"Mixed nuts and seeds":                  {"almonds", "cashews", "pumpkin seeds", "sunflower seeds"},
	"Muesli with fruits":                    {"rolled oats", "banana", "apple", "milk", "yogurt", "raisins"},
	"Omelette with whole grain toast":       {"eggs", "onion", "tomato", "spinach", "whole grain bread"},
	"Peanut butter toast with fruits":       {"bread", "peanut butter", "banana", "apple"},
	"Quinoa salad with chickpeas":           {"quinoa", "chickpeas", "cucumber", "tomato", "lemon", "olive oil"},
	"Rajma with brown rice":                 {"kidney beans", "onion", "tomato", "garlic", "spices", "brown rice"},
	"Roti with tofu and vegetables":         {"whole wheat flour", "tofu", "capsicum", "onion", "spices"},
	"Smoothie with spinach and banana":      {"banana", "spinach", "milk", "honey"},
	"Steamed broccoli and almonds":          {"broccoli", "almonds", "olive oil", "garlic"},
	"Stir-fried tofu with vegetables":       {"tofu", "capsicum", "carrots", "soy sauce", "garlic"},
	"Sweet potato and black bean salad":     {"sweet potato", "black beans", "onion", "lime", "coriander"},
	"Vegetable and bean soup":               {"mixed vegetables", "kidney beans", "onion", "garlic", "spices"},
	"Vegetable poha":                        {"flattened rice", "onion", "potato", "peas", "mustard seeds"},
	"Vegetable stir fry with tofu":          {"tofu", "broccoli", "carrot", "bell pepper", "soy sauce"},
	"Whole grain cereal with milk":          {"whole grain cereal", "milk"},
	"Yogurt with granola and fruits":        {"yogurt", "granola", "banana", "berries", "honey"},
	"Zucchini noodles with marinara sauce":  {"zucchini", "tomato", "garlic", "olive oil", "basil"},
	"Apple slices with peanut butter":       {"apple", "peanut butter"},
}

// staticLookup finds a recipe by exact name, then case-insensitively.
func staticLookup(name string) (string, []string, bool) {
	if items, ok := staticIngredients[name]; ok {
		return name, items, true
	}
	for k, items := range staticIngredients {
		if strings.EqualFold(k, name) {
			return k, items, true
		}
	}
	return "", nil, false
}
