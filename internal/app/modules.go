package app

import (
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/modules/aggregate"
	"github.com/specialistvlad/gridflow/modules/arith"
	"github.com/specialistvlad/gridflow/modules/formula"
	"github.com/specialistvlad/gridflow/modules/tables"
	"github.com/specialistvlad/gridflow/modules/text"
)

// coreModules is the definitive list of all modules that are compiled into
// the gridflow binary.
var coreModules = []registry.Module{
	&arith.Module{},
	&text.Module{},
	&tables.Module{},
	&aggregate.Module{},
	&formula.Module{},
}
