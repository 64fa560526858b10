package game

import "math/rand"

// RandomWord picks a word for the drawer. Repeats across rounds are fine.
func RandomWord() string {
	if len(wordBank) == 0 {
		return "Helicopter"
	}
	return wordBank[rand.Intn(len(wordBank))]
}

var wordBank = []string{
	"Bicycle",
	"Sunflower",
	"Telescope",
	"Butterfly",
	"Sandcastle",
	"Lighthouse",
	"Waterfall",
	"Rainbow",
	"Dragon",
	"Pirate",
	"Snowman",
	"Balloon",
	"Kite",
	"Pizza",
	"Robot",
	"Castle",
	"Volcano",
	"Dinosaur",
	"Guitar",
	"Unicorn",
	"Skateboard",
	"Elephant",
	"Rocket",
	"Cupcake",
	"Jellyfish",
	"Zombie",
	"Vampire",
	"Mermaid",
	"Superhero",
	"Wizard",
	"Treehouse",
	"Spaceship",
	"Doughnut",
	"Giraffe",
	"Banana",
	"Bookshelf",
	"Firework",
	"Penguin",
	"Glasses",
	"Magnet",
	"Cactus",
	"Treasure",
	"Anchor",
	"Parachute",
	"Igloo",
	"Starfish",
	"Comet",
	"Bridge",
	"Lamp",
	"Pyramid",
	"Windmill",
	"Scarecrow",
	"Sailboat",
	"Campfire",
	"Squirrel",
	"Tornado",
	"Kangaroo",
	"Lightning",
	"Crown",
	"Beehive",
	"Cherry",
	"Owl",
	"Tulip",
	"Globe",
	"Seahorse",
	"Accordion",
	"Broom",
	"Dartboard",
	"Envelope",
	"Feather",
	"Grapes",
	"Hammock",
	"Iceberg",
	"Juice",
	"Koala",
	"Lemonade",
	"Microphone",
	"Necklace",
	"Octopus",
	"Popcorn",
	"Quilt",
	"Rattlesnake",
	"Submarine",
	"Tiger",
	"Umbrella",
	"Violin",
	"Walrus",
	"Xylophone",
	"Yacht",
	"Acorn",
	"Backpack",
	"Crab",
	"Dolphin",
	"Eclipse",
	"Flamingo",
	"Helicopter",
	"Island",
	"Jacket",
	"Keyboard",
	"Lantern",
	"Mushroom",
	"Nest",
	"Ostrich",
	"Pumpkin",
	"Raincoat",
	"Snake",
	"Trophy",
	"Ukulele",
	"Volleyball",
	"X-ray",
	"Yo-yo",
}
