package mocks

//go:generate mockery --name Executor --srcpkg github.com/aevon-lab/docagg/internal/engine --output ./engine --outpkg enginemocks --with-expecter
//go:generate mockery --name TemplateStore --srcpkg github.com/aevon-lab/docagg/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
