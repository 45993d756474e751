package termfilter

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"hotboard/core"
)

func TestFilter(t *testing.T) {
	Convey("Given the default filter", t, func() {
		f := New()

		Convey("Ordinary terms are allowed", func() {
			So(f.IsForbidden("golang"), ShouldBeFalse)
			So(f.IsForbidden("redis sorted set"), ShouldBeFalse)
			So(f.IsForbidden("热搜"), ShouldBeFalse)
			So(f.IsForbidden("iphone 15"), ShouldBeFalse)
		})

		Convey("Blocklisted substrings are rejected", func() {
			So(f.IsForbidden("online casino bonus"), ShouldBeTrue)
			So(f.IsForbidden("free bitcoin now"), ShouldBeTrue)
			So(f.IsForbidden("在线赌博"), ShouldBeTrue)
		})

		Convey("Links, addresses and long numbers are rejected", func() {
			So(f.IsForbidden("see https://spam.example"), ShouldBeTrue)
			So(f.IsForbidden("www.spam.example"), ShouldBeTrue)
			So(f.IsForbidden("mail me a@b.co"), ShouldBeTrue)
			So(f.IsForbidden("call 13800138000"), ShouldBeTrue)
			So(f.IsForbidden("<script>alert(1)"), ShouldBeTrue)
		})

		Convey("Overlong and control-character terms are rejected", func() {
			So(f.IsForbidden(strings.Repeat("a", MaxTermRunes)), ShouldBeFalse)
			So(f.IsForbidden(strings.Repeat("a", MaxTermRunes+1)), ShouldBeTrue)
			So(f.IsForbidden("bad\x00term"), ShouldBeTrue)
		})
	})

	Convey("Given extra entries written loosely", t, func() {
		f := New("free  money", "ＳＰＡＭ", "\tBuy\nNow ")

		Convey("They match terms normalized the same way", func() {
			for _, raw := range []string{"FREE money today", "spam", "Ｓｐａｍ mail", "buy now"} {
				term, err := core.NormalizeTerm(raw)
				So(err, ShouldBeNil)
				So(f.IsForbidden(term), ShouldBeTrue)
			}
		})
	})

	Convey("Given a filter with extra entries", t, func() {
		f := New("  Spoiler ", "")

		Convey("Extra entries are normalized and applied", func() {
			So(f.IsForbidden("movie spoiler"), ShouldBeTrue)
			So(f.IsForbidden("movie review"), ShouldBeFalse)
		})

		Convey("The package default is unaffected", func() {
			So(IsForbidden("movie spoiler"), ShouldBeFalse)
		})
	})
}
