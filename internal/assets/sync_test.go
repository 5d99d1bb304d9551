package assets

import (
	"strings"
	"testing"
)

func TestParseSpriteIndex(t *testing.T) {
	html := `<html><body>
<a href="../">..</a>
<a href="bulbasaur.png">bulbasaur.png</a>
<a href="mr-mime.png">mr-mime.png</a>
<a href="notes.txt">notes.txt</a>
<a href="bulbasaur.png">bulbasaur.png</a>
</body></html>`

	names, err := ParseSpriteIndex(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "bulbasaur" || names[1] != "mr-mime" {
		t.Fatalf("names=%v", names)
	}
}

func TestDescription(t *testing.T) {
	desc := Description("mr-mime")

	for _, want := range []string{
		"|description=A Pokémon sprite of Mr Mime",
		"|license=fairuse",
		"|game=pokemon",
		"|copyright=Nintendo / Creatures Inc. / GAME FREAK Inc.",
		"[[Category:Pokémon sprites]]",
	} {
		if !strings.Contains(desc, want) {
			t.Fatalf("description missing %q:\n%s", want, desc)
		}
	}
}
