package crypto

// safetyWords maps each byte value to a word. The list is sorted and has
// no duplicates.
var safetyWords = [256]string{
	"acid", "acorn", "actor", "adobe", "agent", "alarm", "album", "alley",
	"amber", "angle", "ankle", "apple", "apron", "arena", "armor", "arrow",
	"atlas", "attic", "audio", "autumn", "bacon", "badge", "bagel", "baker",
	"bamboo", "banjo", "barn", "basil", "basin", "beach", "beard", "beaver",
	"bench", "berry", "bison", "blade", "blanket", "bloom", "board", "bonnet",
	"boots", "bottle", "bounce", "bracket", "branch", "brick", "bridge", "broom",
	"bubble", "bucket", "buffalo", "bugle", "bundle", "butter", "cabin", "cactus",
	"camel", "camera", "candle", "canoe", "canyon", "carpet", "carrot", "castle",
	"cedar", "cellar", "chalk", "cherry", "chess", "chimney", "cider", "circle",
	"clover", "cobalt", "coffee", "comet", "copper", "coral", "cotton", "coyote",
	"crane", "crayon", "cricket", "crystal", "cuckoo", "cupboard", "dahlia", "daisy",
	"dancer", "denim", "desert", "diesel", "dinner", "dolphin", "domino", "donkey",
	"dragon", "drum", "eagle", "easel", "echo", "eclipse", "elbow", "ember",
	"emerald", "engine", "falcon", "feather", "fennel", "ferry", "fiddle", "finch",
	"flannel", "flute", "forest", "fossil", "fountain", "fox", "galaxy", "garden",
	"garlic", "gecko", "ginger", "glacier", "globe", "goblet", "gravel", "guitar",
	"hammer", "harbor", "harvest", "hazel", "helmet", "hermit", "honey", "hornet",
	"hunter", "iceberg", "igloo", "indigo", "island", "ivory", "jacket", "jaguar",
	"jasmine", "jelly", "jigsaw", "jungle", "kayak", "kernel", "kettle", "kitten",
	"koala", "ladder", "lagoon", "lantern", "laptop", "lemon", "lentil", "lettuce",
	"lilac", "linen", "lizard", "lobster", "locket", "lotus", "magnet", "mango",
	"maple", "marble", "meadow", "melon", "mirror", "mitten", "monkey", "mosaic",
	"muffin", "mustard", "napkin", "nectar", "needle", "nickel", "noodle", "nutmeg",
	"oasis", "ocean", "olive", "onion", "orbit", "orchid", "otter", "oyster",
	"paddle", "palace", "panda", "parrot", "peach", "pebble", "pepper", "piano",
	"pickle", "pigeon", "pillow", "pilot", "pirate", "planet", "plum", "pocket",
	"pony", "poppy", "potato", "pretzel", "puzzle", "quartz", "quill", "rabbit",
	"radar", "radish", "raven", "ribbon", "river", "robin", "rocket", "saddle",
	"salmon", "sandal", "scarf", "shovel", "silver", "sketch", "sparrow", "spider",
	"spinach", "sponge", "squash", "statue", "summit", "sunset", "tablet", "tangle",
	"teapot", "thimble", "thunder", "tiger", "timber", "toast", "tomato", "topaz",
	"tractor", "trumpet", "tulip", "tunnel", "turtle", "umbrella", "valley", "velvet",
}
