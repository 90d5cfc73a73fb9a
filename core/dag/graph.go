package dag

import (
	"os"

	"github.com/axonledger/axon/core/vertex"
	"github.com/axonledger/axon/util"
	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

var (
	fontsizeAttribute = graph.VertexAttribute("fontsize", "10")

	_confirmedNodeAttributes = []func(*graph.VertexProperties){
		fontsizeAttribute,
		graph.VertexAttribute("style", "filled"),
		graph.VertexAttribute("fillcolor", "palegreen"),
	}
	_pendingNodeAttributes = []func(*graph.VertexProperties){
		fontsizeAttribute,
	}
)

// MakeGraph builds a renderable view of the live DAG, mostly for debugging
// and the admin CLI
func (d *DAG) MakeGraph() graph.Graph[string, string] {
	ret := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic())

	vertices := d.Vertices()
	for _, v := range vertices {
		err := ret.AddVertex(v.ID().StringShort(), nodeAttributes(v)...)
		util.AssertNoError(err)
	}
	for _, v := range vertices {
		id := v.ID().StringShort()
		for _, p := range v.Tx.Parents {
			if !d.HasVertex(&p) {
				continue // parent pruned into a snapshot
			}
			err := ret.AddEdge(id, p.StringShort())
			util.AssertNoError(err)
		}
	}
	return ret
}

// SaveGraph writes the DAG as a Graphviz DOT file <fname>.gv
func (d *DAG) SaveGraph(fname string) error {
	gr := d.MakeGraph()
	dotFile, err := os.Create(fname + ".gv")
	if err != nil {
		return err
	}
	defer func() { _ = dotFile.Close() }()

	return draw.DOT(gr, dotFile)
}

func nodeAttributes(v *vertex.Vertex) []func(*graph.VertexProperties) {
	if v.IsConfirmed() {
		return _confirmedNodeAttributes
	}
	return _pendingNodeAttributes
}
