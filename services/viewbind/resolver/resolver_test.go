// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"bytes"
	"context"
	"log/slog"
	"maps"
	"strings"
	"testing"

	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/convention"
	"github.com/AleutianAI/viewbind/services/viewbind/typeterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestResolver_ResolveController(t *testing.T) {
	r := newFixture(t).resolver()

	tests := []struct {
		name       string
		view       string
		wantPath   string
		wantClass  string
		wantAction string
		wantOK     bool
	}{
		{
			name:       "two segments",
			view:       showViewPath,
			wantPath:   questControllerPath,
			wantClass:  "QuestController",
			wantAction: "showAction",
			wantOK:     true,
		},
		{
			name:       "three segments",
			view:       "app/views/debug/sample/index.php",
			wantPath:   "app/Controller/Debug/SampleController.php",
			wantClass:  "SampleController",
			wantAction: "indexAction",
			wantOK:     true,
		},
		{
			name:       "kebab case",
			view:       `app\views\quest-battle\confirm-store.php`,
			wantPath:   battleControllerPath,
			wantClass:  "QuestBattleController",
			wantAction: "confirmStoreAction",
			wantOK:     true,
		},
		{name: "not a view", view: fallbackViewPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, ok := r.ResolveController(convention.NewViewLocation(tt.view))
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantPath, loc.Path)
			assert.Equal(t, tt.wantClass, loc.ClassName)
			assert.Equal(t, tt.wantAction, loc.ActionName)
		})
	}
}

func TestResolver_ExtractBindings(t *testing.T) {
	r := newFixture(t).resolver()
	bindings := r.ExtractBindings(context.Background(), convention.NewViewLocation(showViewPath))

	assert.ElementsMatch(t, []string{"quest", "quests", "episode", "title"}, keys(bindings))

	title := bindings["title"]
	lit, ok := title.Value.(*ast.Literal)
	require.True(t, ok, "last write must win, got %T", title.Value)
	assert.Equal(t, "int", lit.Type)
	assert.Equal(t, "showAction", title.Method.Name)
	assert.Equal(t, questControllerPath, title.File.Path)
	assert.Equal(t, "title", title.KeyLiteral.Value)
}

func TestResolver_ExtractBindings_Empty(t *testing.T) {
	r := newFixture(t).resolver()

	tests := []struct {
		name string
		view string
	}{
		{"controller missing", "app/views/missing/show.php"},
		{"action missing", "app/views/quest/absent.php"},
		{"method without action suffix", "app/views/quest/helper.php"},
		{"not a view", fallbackViewPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ExtractBindings(context.Background(), convention.NewViewLocation(tt.view))
			require.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestResolver_ExtractBindings_Canceled(t *testing.T) {
	r := newFixture(t).resolver()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := r.ExtractBindings(ctx, convention.NewViewLocation(showViewPath))
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResolver_Variants(t *testing.T) {
	r := newFixture(t).resolver()
	got := r.Variants(context.Background(), convention.NewViewLocation(showViewPath))
	assert.Equal(t, []string{"episode", "pending", "quest", "quests", "title"}, got)

	assert.Empty(t, r.Variants(context.Background(), convention.NewViewLocation("app/views/missing/show.php")))
}

func TestResolver_CustomSetterName(t *testing.T) {
	f := newFixtureFrom(t, map[string]string{
		"app/Controller/PageController.php": `<?php
class PageController
{
    public function viewAction()
    {
        $this->assign('page', 1);
        $this->setVar('ignored', 2);
    }
}
`,
	})
	r := f.resolver(WithSetterName("assign"))
	got := r.ExtractBindings(context.Background(), convention.NewViewLocation("app/views/page/view.php"))
	assert.Equal(t, []string{"page"}, keys(got))
}

func TestResolver_IsBindingWrite(t *testing.T) {
	r := newFixture(t).resolver()
	ctx := context.Background()

	assert.True(t, r.IsBindingWrite(ctx, questControllerPath, offsetOf(t, questControllerPath, "'quest'")))
	assert.True(t, r.IsBindingWrite(ctx, questControllerPath, offsetOf(t, questControllerPath, "'hidden'")))
	assert.False(t, r.IsBindingWrite(ctx, questControllerPath, offsetOf(t, questControllerPath, "'first'")))
	assert.False(t, r.IsBindingWrite(ctx, questControllerPath, offsetOf(t, questControllerPath, "getQuest()")))
	assert.False(t, r.IsBindingWrite(ctx, "app/Controller/Nope.php", 10))
}

func TestResolver_ElementType_Encodings(t *testing.T) {
	r := newFixture(t).resolver()

	tests := []struct {
		name string
		in   typeterm.Descriptor
		want typeterm.Descriptor
	}{
		{"array suffix", typeterm.New("Quest[]"), typeterm.New("Quest")},
		{"generic", typeterm.New("array<Quest>"), typeterm.New("Quest")},
		{"generic key value", typeterm.New(`array<int, \App\Model\Quest>`), typeterm.New(`App\Model\Quest`)},
		{"union term", typeterm.New("array|Quest[]"), typeterm.New("Quest")},
		{"method reference", typeterm.New(`#M#C\App\Model\Episode.getQuests`), typeterm.New(`App\Model\Quest`)},
		{"generic method reference", typeterm.New(`#M#C\App\Model\Episode.byLevel`), typeterm.New(`App\Model\Quest`)},
		{"closure", typeterm.New(`#π(\App\Model\Quest[])`), typeterm.New(`App\Model\Quest`)},
		{"class name", typeterm.New(`\App\Model\Quest`), typeterm.New(`App\Model\Quest`)},
		{"array before class", typeterm.New(`\App\Model\Episode`, "Quest[]"), typeterm.New("Quest")},
		{"primitive", typeterm.New("int"), typeterm.Unknown},
		{"unknown method", typeterm.New(`#M#C\App\Model\Episode.nope`), typeterm.Unknown},
		{"empty", typeterm.Unknown, typeterm.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ElementType(context.Background(), tt.in)
			assert.True(t, tt.want.Equal(got), "ElementType(%s) = %s, want %s", tt.in, got, tt.want)
		})
	}
}

func TestResolver_InferType(t *testing.T) {
	r := newFixture(t).resolver()
	view := convention.NewViewLocation(showViewPath)

	tests := []struct {
		variable string
		want     typeterm.Descriptor
	}{
		{"quest", typeterm.New(`App\Model\Quest`)},
		{"$quest", typeterm.New(`App\Model\Quest`)},
		{"quests", typeterm.New("array", `App\Model\Quest[]`)},
		{"item", typeterm.New(`App\Model\Quest`)},
		{"entry", typeterm.New(`App\Model\Quest`)},
		{"episode", typeterm.New(`App\Model\Episode`)},
		{"title", typeterm.New("int")},
		{"missing", typeterm.Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.variable, func(t *testing.T) {
			got := r.InferType(context.Background(), view, tt.variable)
			assert.True(t, tt.want.Equal(got), "InferType(%s) = %s, want %s", tt.variable, got, tt.want)
		})
	}
}

func TestResolver_InferTypeAt(t *testing.T) {
	r := newFixture(t).resolver()
	view := convention.NewViewLocation(showViewPath)

	got := r.InferTypeAt(context.Background(), view, "item", offsetOf(t, showViewPath, "$item->title"))
	assert.True(t, typeterm.New(`App\Model\Quest`).Equal(got), "got %s", got)
}

func TestResolver_InferType_MutualForeachCycle(t *testing.T) {
	r := newFixture(t).resolver()
	view := convention.NewViewLocation(cycleViewPath)

	assert.True(t, r.InferType(context.Background(), view, "left").IsEmpty())
	assert.True(t, r.InferType(context.Background(), view, "right").IsEmpty())
}

func TestResolver_InferType_DepthBound(t *testing.T) {
	r := newFixture(t).resolver(WithMaxDepth(1))
	view := convention.NewViewLocation(showViewPath)

	// The loop variable needs a second level to type its iterated variable.
	assert.True(t, r.InferType(context.Background(), view, "item").IsEmpty())
	assert.False(t, r.InferType(context.Background(), view, "quest").IsEmpty())
}

const seasonModelSource = `<?php
namespace App\Model;

class Season
{
    /** @var Episode[] */
    public array $episodes = [];

    /** @return Episode[] */
    public function getEpisodes(): array
    {
        return $this->episodes;
    }
}
`

const seasonControllerSource = `<?php
namespace App\Controller;

use App\Foundation\Controller;
use App\Model\Season;

class SeasonController extends Controller
{
    public function listAction(Season $season)
    {
        $this->setVar('episodes', $season->getEpisodes());
        $this->setVar('season', $season);
    }
}
`

const seasonViewSource = `<?php foreach ($episodes as $episode): ?>
    <h2><?= $episode->name ?></h2>
    <?php foreach ($episode->getQuests() as $quest): ?>
        <li><?= $quest->title ?></li>
    <?php endforeach; ?>
<?php endforeach; ?>
<?php foreach ($season->episodes as $listed): ?>
    <?= $listed->name ?>
<?php endforeach; ?>
`

func TestResolver_InferType_NestedLoops(t *testing.T) {
	sources := maps.Clone(fixtureSources)
	sources["app/Model/Season.php"] = seasonModelSource
	sources["app/Controller/SeasonController.php"] = seasonControllerSource
	sources["app/views/season/list.php"] = seasonViewSource
	r := newFixtureFrom(t, sources).resolver()
	view := convention.NewViewLocation("app/views/season/list.php")

	tests := []struct {
		variable string
		want     typeterm.Descriptor
	}{
		{"episodes", typeterm.New("array", `App\Model\Episode[]`)},
		{"episode", typeterm.New(`App\Model\Episode`)},
		{"quest", typeterm.New(`App\Model\Quest`)},
		{"listed", typeterm.New(`App\Model\Episode`)},
	}
	for _, tt := range tests {
		t.Run(tt.variable, func(t *testing.T) {
			got := r.InferType(context.Background(), view, tt.variable)
			assert.True(t, tt.want.Equal(got), "InferType(%s) = %s, want %s", tt.variable, got, tt.want)
		})
	}

	at := strings.Index(seasonViewSource, "$quest->title") + 1
	got := r.InferTypeAt(context.Background(), view, "quest", at)
	assert.True(t, typeterm.New(`App\Model\Quest`).Equal(got), "got %s", got)
}

func TestResolver_InferType_LoopOverOwnMember(t *testing.T) {
	sources := maps.Clone(fixtureSources)
	sources["app/views/quest/self.php"] = `<?php foreach ($item->children() as $item): ?>
<?php endforeach; ?>
`
	r := newFixtureFrom(t, sources).resolver()
	got := r.InferType(context.Background(), convention.NewViewLocation("app/views/quest/self.php"), "item")
	assert.True(t, got.IsEmpty(), "got %s", got)
}

func TestResolver_ListMembers(t *testing.T) {
	r := newFixture(t).resolver()
	ctx := context.Background()

	quest := r.InferType(ctx, convention.NewViewLocation(showViewPath), "quest")
	members := r.ListMembers(ctx, quest)

	assert.Equal(t, []string{"title", "level"}, names(members.Fields))
	assert.Equal(t, []string{"getTitle", "reward"}, names(members.Methods))
}

func TestResolver_ListMembers_Descriptors(t *testing.T) {
	r := newFixture(t).resolver()
	ctx := context.Background()

	tests := []struct {
		name        string
		in          typeterm.Descriptor
		wantMethods []string
	}{
		{"short name", typeterm.New("Episode"), []string{"getQuests", "getQuest", "byLevel"}},
		{"qualified", typeterm.New(`\App\Model\Episode`), []string{"getQuests", "getQuest", "byLevel"}},
		{"duplicate terms", typeterm.New(`App\Model\Episode`, "Episode"), []string{"getQuests", "getQuest", "byLevel"}},
		{"method reference", typeterm.New(`#M#C\App\Model\Episode.getQuest`), []string{"getTitle", "reward"}},
		{"unknown class", typeterm.New("Nope"), nil},
		{"primitive", typeterm.New("int"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ListMembers(ctx, tt.in)
			assert.Equal(t, tt.wantMethods, names(got.Methods))
		})
	}
}

const legacyQuestSource = `<?php
namespace App\Legacy;

class Quest
{
    public string $code = '';

    public function archive(): void
    {
    }
}
`

func TestResolver_ListMembers_EveryMatchingClass(t *testing.T) {
	sources := maps.Clone(fixtureSources)
	sources["app/Legacy/Quest.php"] = legacyQuestSource
	r := newFixtureFrom(t, sources).resolver()
	ctx := context.Background()

	all := r.ListMembers(ctx, typeterm.New("Quest"))
	assert.ElementsMatch(t, []string{"title", "level", "code"}, names(all.Fields))
	assert.ElementsMatch(t, []string{"getTitle", "reward", "archive"}, names(all.Methods))

	exact := r.ListMembers(ctx, typeterm.New(`\App\Legacy\Quest`))
	assert.Equal(t, []string{"code"}, names(exact.Fields))
	assert.Equal(t, []string{"archive"}, names(exact.Methods))
}

func TestResolver_ListMembers_MagicPrefix(t *testing.T) {
	r := newFixture(t).resolver(WithMagicPrefix("get"))
	got := r.ListMembers(context.Background(), typeterm.New("Quest"))
	assert.Equal(t, []string{"__construct", "reward"}, names(got.Methods))
}

func TestResolver_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := newFixture(t).resolver(WithLogger(logger))

	r.ExtractBindings(context.Background(), convention.NewViewLocation("app/views/missing/show.php"))
	assert.Contains(t, buf.String(), "controller file not found")

	buf.Reset()
	r.ExtractBindings(context.Background(), convention.NewViewLocation("app/views/quest/absent.php"))
	assert.Contains(t, buf.String(), "action method not found")
}

func TestResolver_Tracing(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	r := newFixture(t).resolver(WithTracer(tp.Tracer("test")))

	r.ExtractBindings(context.Background(), convention.NewViewLocation(showViewPath))
	r.Variants(context.Background(), convention.NewViewLocation("app/views/missing/show.php"))

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "resolver.extract_bindings", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("outcome", outcomeFound))
	assert.Equal(t, "resolver.variants", spans[1].Name())
	assert.Contains(t, spans[1].Attributes(), attribute.String("outcome", outcomeEmpty))
}

func keys(m map[string]Binding) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func names(symbols []*ast.Symbol) []string {
	var out []string
	for _, s := range symbols {
		out = append(out, s.Name)
	}
	return out
}
