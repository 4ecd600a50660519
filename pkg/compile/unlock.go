package compile

import (
	"github.com/msftcangoblowm/drain-swamp/pkg/req"
	"github.com/msftcangoblowm/drain-swamp/pkg/reqfile"
	"github.com/msftcangoblowm/drain-swamp/pkg/venvs"
)

// UnlockCompile flattens the include graph of the named venv's ``.in``
// files into ``.unlock`` files, or of all venvs when venvKey is empty.
// No resolver runs and no network is touched. Returns the written
// absolute paths.
func UnlockCompile(m *venvs.Map, venvKey string) ([]string, error) {
	var vreqs []venvs.VenvReq
	var err error
	if venvKey != "" {
		vreqs, err = m.Reqs(venvKey)
		if err != nil {
			return nil, err
		}
	} else {
		vreqs = m.All()
	}

	var inFiles []string
	for _, vr := range vreqs {
		inFiles = append(inFiles, req.ReplaceSuffixLast(vr.ReqAbspath(), req.SuffixIn))
	}

	g, err := reqfile.NewGraph(m.Loader().ProjectBase, inFiles)
	if err != nil {
		return nil, err
	}
	if err := g.Resolve(); err != nil {
		return nil, err
	}
	return g.WriteUnlock()
}
