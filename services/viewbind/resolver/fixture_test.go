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
	"context"
	"path"
	"sort"
	"strings"
	"testing"

	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/index"
	"github.com/AleutianAI/viewbind/services/viewbind/typeinfo"
	"github.com/stretchr/testify/require"
)

const (
	baseControllerPath   = "app/Foundation/Controller.php"
	questModelPath       = "app/Model/Quest.php"
	episodeModelPath     = "app/Model/Episode.php"
	questControllerPath  = "app/Controller/QuestController.php"
	battleControllerPath = "app/Controller/QuestBattleController.php"
	showViewPath         = "app/views/quest/show.php"
	cycleViewPath        = "app/views/quest/cycle.php"
	fallbackViewPath     = "app/templates/battle/confirm-store.php"
)

const baseControllerSource = `<?php
namespace App\Foundation;

abstract class Controller
{
    protected array $vars = [];

    public function setVar(string $name, $value = null): void
    {
        $this->vars = [$name => $value];
    }
}
`

const questModelSource = `<?php
namespace App\Model;

class Quest
{
    public string $title = '';
    protected int $level = 1;
    private string $secret = '';

    public function __construct()
    {
    }

    public function getTitle(): string
    {
        return $this->title;
    }

    protected function reward(): int
    {
        return $this->level;
    }

    private function hidden(): string
    {
        return $this->secret;
    }
}
`

const episodeModelSource = `<?php
namespace App\Model;

class Episode
{
    public string $name = '';

    /** @return Quest[] */
    public function getQuests(): array
    {
        return [];
    }

    public function getQuest(): Quest
    {
        return new Quest();
    }

    /** @return array<int, Quest> */
    public function byLevel(): array
    {
        return [];
    }
}
`

const questControllerSource = `<?php
namespace App\Controller;

use App\Foundation\Controller;
use App\Model\Episode;

class QuestController extends Controller
{
    public function showAction(Episode $episode)
    {
        $this->setVar('quest', $episode->getQuest());
        $this->setVar('quests', $episode->getQuests());
        $this->setVar('episode', $episode);
        $this->setVar('title', 'first');
        $this->setVar('title', 42);
        $this->setVar('pending');
        $this->setVar($dynamic, 1);
    }

    public function cycleAction()
    {
        $this->setVar('unrelated', $nothing);
    }

    private function helper()
    {
        $this->setVar('hidden', 1);
    }
}
`

const battleControllerSource = `<?php
namespace App\Controller;

use App\Foundation\Controller;

class QuestBattleController extends Controller
{
    public function confirmStoreAction()
    {
        $this->setVar('battle', 'ready');
    }
}
`

const showViewSource = `<?php /** @var \App\Model\Quest[] $list */ ?>
<h1><?= $quest->getTitle() ?></h1>
<?php foreach ($quests as $item): ?>
    <li><?= $item->title ?></li>
<?php endforeach; ?>
<?php foreach ($list as $entry): ?>
    <li><?= $entry->title ?></li>
<?php endforeach; ?>
<p><?= $title ?></p>
<footer><?= $quest->title ?></footer>
`

const cycleViewSource = `<?php foreach ($left as $right): ?>
<?php endforeach; ?>
<?php foreach ($right as $left): ?>
<?php endforeach; ?>
`

const fallbackViewSource = `<p><?= $battle ?></p>
`

// project is an in-memory SyntaxSource and FileLocator.
type project struct {
	files map[string]*ast.File
}

func (p *project) File(filePath string) (*ast.File, bool) {
	f, ok := p.files[filePath]
	return f, ok
}

func (p *project) Exists(filePath string) bool {
	_, ok := p.files[filePath]
	return ok
}

func (p *project) FindByBaseName(name string) []string {
	var out []string
	for filePath := range p.files {
		if path.Base(filePath) == name {
			out = append(out, filePath)
		}
	}
	sort.Strings(out)
	return out
}

type fixture struct {
	project *project
	index   *index.SymbolIndex
	oracle  *typeinfo.Oracle
}

var fixtureSources = map[string]string{
	baseControllerPath:   baseControllerSource,
	questModelPath:       questModelSource,
	episodeModelPath:     episodeModelSource,
	questControllerPath:  questControllerSource,
	battleControllerPath: battleControllerSource,
	showViewPath:         showViewSource,
	cycleViewPath:        cycleViewSource,
	fallbackViewPath:     fallbackViewSource,
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureFrom(t, fixtureSources)
}

func newFixtureFrom(t *testing.T, sources map[string]string) *fixture {
	t.Helper()
	parser := ast.NewPHPParser()
	f := &fixture{
		project: &project{files: make(map[string]*ast.File)},
		index:   index.NewSymbolIndex(),
	}
	for filePath, src := range sources {
		result, err := parser.Parse(context.Background(), []byte(src), filePath)
		require.NoError(t, err, filePath)
		require.NoError(t, f.index.AddBatch(ast.Flatten(result.Symbols)), filePath)
		f.project.files[filePath] = result.File
	}
	f.oracle = typeinfo.New(f.index)
	return f
}

func (f *fixture) resolver(opts ...Option) *Resolver {
	return New(f.project, f.oracle, f.index, f.project, opts...)
}

// offsetOf returns the offset just inside the first occurrence of needle
// in the source of filePath.
func offsetOf(t *testing.T, filePath, needle string) int {
	t.Helper()
	i := strings.Index(fixtureSources[filePath], needle)
	require.GreaterOrEqual(t, i, 0, "%q not found in %s", needle, filePath)
	return i + 1
}
